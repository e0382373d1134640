package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/redgumnet/edgegate/pkg/jwtx"
	"github.com/redgumnet/edgegate/pkg/slogx"
)

// ErrMissingToken means the Authorization header was absent or not a Bearer
// scheme. Kept distinct from ErrMalformed: the client sent nothing usable at
// all rather than a broken token.
var ErrMissingToken = errors.New("httpx: missing bearer token")

// AuthnObserver is notified when a request is turned away, with the
// classified verification error. Used for audit trails.
type AuthnObserver func(r *http.Request, err error)

// AuthnMiddleware verifies the bearer token on every request and attaches
// the resulting claims to the context. Verification failures map onto HTTP
// statuses here: a missing or bad token is the caller's problem (401), an
// unreachable or empty key set is ours (503).
func AuthnMiddleware(v *jwtx.Verifier) Middleware {
	return AuthnMiddlewareObserved(v, nil)
}

// AuthnMiddlewareObserved is AuthnMiddleware with a rejection hook. onReject
// may be nil.
func AuthnMiddlewareObserved(v *jwtx.Verifier, onReject AuthnObserver) Middleware {
	reject := func(r *http.Request, err error) {
		if onReject != nil {
			onReject(r, err)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := bearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				reject(r, ErrMissingToken)
				return
			}

			claims, err := v.Verify(ctx, raw)
			if err != nil {
				if errors.Is(err, jwtx.ErrKeySetFetch) {
					log.Error("key set unavailable", "err", err)
					WriteError(w, http.StatusServiceUnavailable, "verification keys unavailable")
					reject(r, err)
					return
				}

				log.Warn("token rejected", "err", err)
				writeBearerError(w, rejectionDescription(err))
				reject(r, err)
				return
			}

			log.Debug("request authenticated",
				"sub", claims.Subject,
				"email", slogx.MaskEmail(claims.Email),
				"role", claims.Role,
			)

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

// bearerToken extracts the token from the Authorization header. A header
// that exists but isn't a Bearer scheme counts as missing.
func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	if token == "" {
		return "", false
	}
	return token, true
}

// rejectionDescription keeps client-visible messages coarse. Expired gets a
// specific message so clients know to refresh; everything else stays generic.
func rejectionDescription(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return "token expired"
	case errors.Is(err, jwtx.ErrMalformed):
		return "malformed token"
	default:
		return "token verification failed"
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
