package gateway_test

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/redgumnet/edgegate/internal/gateway/academic"
	gatewayhttp "github.com/redgumnet/edgegate/internal/gateway/http"
	"github.com/redgumnet/edgegate/internal/gateway/service"
	"github.com/redgumnet/edgegate/internal/gateway/store/drivers/sqlite"
	"github.com/redgumnet/edgegate/internal/gateway/upstream"
	"github.com/redgumnet/edgegate/pkg/httpx"
	"github.com/redgumnet/edgegate/pkg/jwtx"
)

const (
	testKID        = "edge-rs-1"
	testAdminToken = "operator-token-42"

	studentID       = "s1048576"
	studentPassword = "correct-horse"
)

var testSecret = []byte("gateway-shared-secret-0123456789")

// recorder is a stand-in upstream that captures the last request it served.
type recorder struct {
	mu sync.Mutex

	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte

	Hits atomic.Int64
}

func (rec *recorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		rec.mu.Lock()
		rec.Method = r.Method
		rec.Path = r.URL.Path
		rec.Query = r.URL.RawQuery
		rec.Header = r.Header.Clone()
		rec.Body = body
		rec.mu.Unlock()
		rec.Hits.Add(1)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Served-By", "upstream-stub")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

func (rec *recorder) last() recorded {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return recorded{
		Method: rec.Method,
		Path:   rec.Path,
		Query:  rec.Query,
		Header: rec.Header,
		Body:   rec.Body,
	}
}

// testEnv wires a complete gateway against stub servers: a JWKS endpoint, two
// live upstreams, one dead upstream and an academic portal.
type testEnv struct {
	BaseURL string
	Store   *sqlite.Store
	Keys    *jwtx.KeyCache

	JWKSHits *atomic.Int64
	RSAKey   *rsa.PrivateKey

	Billing *recorder
	Auth    *recorder
}

func setupGateway(t *testing.T) *testEnv {
	t.Helper()

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var jwksHits atomic.Int64
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwksHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		httpx.WriteJSON(w, http.StatusOK, jwtx.JWKS{
			Keys: []jwtx.JWK{jwtx.NewRSAJWK(testKID, "RS256", &rsaKey.PublicKey)},
		})
	}))
	t.Cleanup(jwksServer.Close)

	billing := &recorder{}
	billingServer := httptest.NewServer(billing.handler())
	t.Cleanup(billingServer.Close)

	authRec := &recorder{}
	authServer := httptest.NewServer(authRec.handler())
	t.Cleanup(authServer.Close)

	// A configured upstream whose backend is already gone.
	deadServer := httptest.NewServer(http.NotFoundHandler())
	deadURL := deadServer.URL
	deadServer.Close()

	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostFormValue("username") == studentID && r.PostFormValue("password") == studentPassword {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(portal.Close)

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// The stub serves the key set on every path; the well-known suffix just
	// exercises the real URL shape.
	keys := jwtx.NewKeyCache(nil)
	verifier := jwtx.NewVerifier(jwksServer.URL+"/.well-known/jwks.json", testSecret, keys, logger)

	registry := upstream.NewRegistry(nil, []upstream.Upstream{
		{Name: "billing", BaseURL: billingServer.URL, Headers: map[string]string{"X-Api-Key": "billing-credential"}},
		{Name: "auth", BaseURL: authServer.URL, Headers: map[string]string{"X-Api-Key": "auth-credential"}},
		{Name: "reports", BaseURL: deadURL},
	})

	audit := &service.AuditService{Store: st, Logger: logger}

	router := gatewayhttp.NewRouter(verifier, keys, testAdminToken, "e2e", st, logger)
	router.Registry = registry
	router.AuditService = audit
	router.AcademicService = &academic.Service{
		Portal:       academic.NewClient(portal.URL, nil),
		Registry:     registry,
		AuthUpstream: "auth",
		ResetPath:    "/admin/users/password",
	}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		BaseURL:  server.URL,
		Store:    st,
		Keys:     keys,
		JWKSHits: &jwksHits,
		RSAKey:   rsaKey,
		Billing:  billing,
		Auth:     authRec,
	}
}

func signHS(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: sub + "@example.edu",
		Role:  "student",
	})

	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func signRS(t *testing.T, key *rsa.PrivateKey, kid, sub string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, method, url, bearer string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, url, body)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}
