package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redgumnet/edgegate/internal/gateway/academic"
	"github.com/redgumnet/edgegate/internal/gateway/domain"
	"github.com/redgumnet/edgegate/internal/gateway/service"
	"github.com/redgumnet/edgegate/internal/gateway/store"
	"github.com/redgumnet/edgegate/internal/gateway/upstream"
	"github.com/redgumnet/edgegate/pkg/httpx"
	"github.com/redgumnet/edgegate/pkg/jwtx"
	"github.com/redgumnet/edgegate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     *jwtx.Verifier
	keys         *jwtx.KeyCache
	adminToken   string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Registry        *upstream.Registry
	AuditService    *service.AuditService
	AcademicService *academic.Service
}

func NewRouter(
	verifier *jwtx.Verifier,
	keys *jwtx.KeyCache,
	adminToken, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		keys:         keys,
		adminToken:   adminToken,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerProxies()
	r.registerAcademic()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// registerProxies mounts one authenticated forwarding route per configured
// upstream. Each upstream owns the path prefix matching its name.
func (r *Router) registerProxies() {
	authn := httpx.AuthnMiddlewareObserved(r.verifier, r.auditRejection)

	for _, name := range r.Registry.Names() {
		h := &ProxyHandler{
			Name:     name,
			Registry: r.Registry,
			Audit:    r.AuditService,
		}
		r.Mux.Handle("/"+name+"/", httpx.Chain(h, authn))
	}
}

func (r *Router) registerAcademic() {
	h := &AcademicHandler{Service: r.AcademicService}

	// Public by design: the reset flow authenticates against the academic
	// portal, not with a gateway token.
	r.Mux.Handle("POST /v1/academic/verify", http.HandlerFunc(h.HandleVerify))
	r.Mux.Handle("POST /v1/academic/password-reset", http.HandlerFunc(h.HandleReset))
}

func (r *Router) registerAdmin() {
	h := &KeyCacheHandler{Keys: r.keys, AdminToken: r.adminToken, Logger: r.logger}
	r.Mux.Handle("POST /v1/keys/cache/clear", http.HandlerFunc(h.HandleClear))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys))
}

// auditRejection records requests the authn middleware turned away.
func (r *Router) auditRejection(req *http.Request, err error) {
	if r.AuditService == nil {
		return
	}

	status := http.StatusUnauthorized
	if errors.Is(err, jwtx.ErrKeySetFetch) {
		status = http.StatusServiceUnavailable
	}

	r.AuditService.Record(req.Context(), domain.RequestAudit{
		Method:  req.Method,
		Path:    req.URL.Path,
		Status:  status,
		Outcome: domain.OutcomeRejected,
		Detail:  failureClass(err),
	})
}

// failureClass flattens a verification error into a stable label for the
// audit trail.
func failureClass(err error) string {
	switch {
	case errors.Is(err, httpx.ErrMissingToken):
		return "missing_token"
	case errors.Is(err, jwtx.ErrMalformed):
		return "malformed_token"
	case errors.Is(err, jwtx.ErrExpired):
		return "token_expired"
	case errors.Is(err, jwtx.ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, jwtx.ErrInvalidSig):
		return "invalid_signature"
	case errors.Is(err, jwtx.ErrNoVerifyMethod):
		return "no_verify_method"
	case errors.Is(err, jwtx.ErrKeySetFetch):
		return "key_set_fetch_failed"
	default:
		return "verification_failed"
	}
}
