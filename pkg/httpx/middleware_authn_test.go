package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redgumnet/edgegate/pkg/httpx"
	"github.com/redgumnet/edgegate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cr3t"

func signHS(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// newAuthedHandler wires the middleware in front of a handler that records
// the authenticated subject.
func newAuthedHandler(jwksURL string, gotSub *string) http.Handler {
	v := jwtx.NewVerifier(jwksURL, []byte(testSecret), jwtx.NewKeyCache(nil), nil)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotSub = httpx.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return httpx.Chain(inner, httpx.AuthnMiddleware(v))
}

func TestAuthnMiddlewarePassesValidToken(t *testing.T) {
	var gotSub string
	h := newAuthedHandler("http://unused.invalid/jwks.json", &gotSub)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer "+signHS(t, testSecret, "u1", time.Now().Add(time.Hour)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u1", gotSub)
}

func TestAuthnMiddlewareMissingToken(t *testing.T) {
	var gotSub string
	h := newAuthedHandler("http://unused.invalid/jwks.json", &gotSub)

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "Bearer ", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/anything", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "missing bearer token")
		require.Empty(t, gotSub)
	}
}

func TestAuthnMiddlewareExpiredToken(t *testing.T) {
	var gotSub string
	h := newAuthedHandler("http://unused.invalid/jwks.json", &gotSub)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer "+signHS(t, testSecret, "u1", time.Now().Add(-time.Minute)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "token expired")
}

func TestAuthnMiddlewareKeySetDownIs503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"keys":[]}`))
	}))
	defer srv.Close()

	var gotSub string
	h := newAuthedHandler(srv.URL, &gotSub)

	// RS256-shaped token forces stage 2, which hits the empty key set.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"})
	token.Header["alg"] = "RS256"
	token.Header["kid"] = "k1"
	raw, err := token.SigningString()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer "+raw+".fakesig")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthnMiddlewareGarbageToken(t *testing.T) {
	var gotSub string
	h := newAuthedHandler("http://unused.invalid/jwks.json", &gotSub)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer not.a")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "malformed token")
}
