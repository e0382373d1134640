package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/redgumnet/edgegate/internal/gateway/upstream"
)

type Config struct {
	IssuerURL    string // Required: identity provider base URL
	JWKSPath     string // Optional: well-known key set path (default: /.well-known/jwks.json)
	SharedSecret string // Required: symmetric JWT verification secret
	AdminToken   string // Optional: enables the operator endpoints when set

	Upstreams []upstream.Upstream // Parsed from GATEWAY_UPSTREAMS + per-upstream header vars

	AcademicPortalURL string // Optional: academic credential portal form endpoint
	AcademicResetPath string // Optional: admin password endpoint on the auth upstream
	AuthUpstreamName  string // Optional: registry name of the auth provider (default: auth)

	DatabaseFile         string        // Optional: path to SQLite audit database (default: ./gateway.db)
	AuditRetention       time.Duration // Optional: audit row retention (default: 30 days)
	HousekeepingInterval time.Duration // Optional: prune interval (default: 1h)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// JWKSURL derives the full key set URL from the issuer.
func (c Config) JWKSURL() string {
	return strings.TrimRight(c.IssuerURL, "/") + c.JWKSPath
}

// LoadConfig reads configuration from the environment, after loading an
// optional .env file for local development.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		IssuerURL:    os.Getenv("GATEWAY_ISSUER_URL"),
		JWKSPath:     getEnvOrDefault("GATEWAY_JWKS_PATH", "/.well-known/jwks.json"),
		SharedSecret: os.Getenv("GATEWAY_JWT_SECRET"),
		AdminToken:   os.Getenv("GATEWAY_ADMIN_TOKEN"),

		AcademicPortalURL: os.Getenv("GATEWAY_ACADEMIC_PORTAL_URL"),
		AcademicResetPath: getEnvOrDefault("GATEWAY_ACADEMIC_RESET_PATH", "/admin/users/password"),
		AuthUpstreamName:  getEnvOrDefault("GATEWAY_AUTH_UPSTREAM", "auth"),

		DatabaseFile:         getEnvOrDefault("GATEWAY_AUDIT_DB", "gateway.db"),
		AuditRetention:       getEnvDurationOrDefault("GATEWAY_AUDIT_RETENTION", 30*24*time.Hour),
		HousekeepingInterval: getEnvDurationOrDefault("GATEWAY_HOUSEKEEPING_INTERVAL", time.Hour),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	cfg.Upstreams = parseUpstreams(os.Getenv("GATEWAY_UPSTREAMS"), os.LookupEnv)

	return cfg
}

// parseUpstreams reads the upstream table. list is comma-separated
// "name=baseURL" pairs; each upstream's credential headers come from
// GATEWAY_UPSTREAM_<NAME>_HEADERS as semicolon-separated "Key: value"
// pairs, e.g.
//
//	GATEWAY_UPSTREAMS="db=https://db.internal,auth=https://auth.internal"
//	GATEWAY_UPSTREAM_DB_HEADERS="apikey: abc; Authorization: Bearer abc"
func parseUpstreams(list string, lookup func(string) (string, bool)) []upstream.Upstream {
	var out []upstream.Upstream

	for _, pair := range strings.Split(list, ",") {
		name, baseURL, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || baseURL == "" {
			continue
		}

		u := upstream.Upstream{
			Name:    name,
			BaseURL: baseURL,
			Headers: map[string]string{},
		}

		headerVar := "GATEWAY_UPSTREAM_" + strings.ToUpper(name) + "_HEADERS"
		if raw, found := lookup(headerVar); found {
			for _, kv := range strings.Split(raw, ";") {
				key, value, ok := strings.Cut(kv, ":")
				if !ok {
					continue
				}
				u.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
		}

		out = append(out, u)
	}

	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
