package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redgumnet/edgegate/internal/gateway/upstream"
	"github.com/redgumnet/edgegate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestProxyHandlerForwardsAndRelays(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	reg := upstream.NewRegistry(nil, []upstream.Upstream{{
		Name:    "db",
		BaseURL: srv.URL,
		Headers: map[string]string{"Authorization": "Bearer service-key"},
	}})

	h := &ProxyHandler{Name: "db", Registry: reg}

	req := httptest.NewRequest(http.MethodGet, "/db/rest/v1/widgets?select=id", nil)
	req.Header.Set("Authorization", "Bearer client-token")
	req.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"id":1}`, rec.Body.String())
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// Prefix stripped, query preserved.
	require.Equal(t, "/rest/v1/widgets", gotPath)
	require.Equal(t, "select=id", gotQuery)

	// The client's token never leaves the gateway; the service key does.
	require.Equal(t, "Bearer service-key", gotAuth)
	require.Equal(t, "application/json", gotAccept)
}

func TestProxyHandlerUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // dead on arrival

	reg := upstream.NewRegistry(nil, []upstream.Upstream{{Name: "db", BaseURL: srv.URL}})
	h := &ProxyHandler{Name: "db", Registry: reg}

	req := httptest.NewRequest(http.MethodGet, "/db/anything", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "upstream request failed")
}

func TestProxyHandlerBarePrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	reg := upstream.NewRegistry(nil, []upstream.Upstream{{Name: "auth", BaseURL: srv.URL}})
	h := &ProxyHandler{Name: "auth", Registry: reg}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/", nil))

	require.Equal(t, "/", gotPath)
}

func TestKeyCacheHandlerClear(t *testing.T) {
	// Populate a cache via a one-shot JWKS endpoint.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[{"kty":"OKP","crv":"Ed25519","kid":"k1","x":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}]}`))
	}))
	defer srv.Close()

	cache := jwtx.NewKeyCache(nil)
	_, err := cache.Keys(context.Background(), srv.URL)
	require.NoError(t, err)
	require.True(t, cache.Cached())

	h := &KeyCacheHandler{Keys: cache, AdminToken: "op-token", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	// Wrong token is turned away and the cache survives.
	req := httptest.NewRequest(http.MethodPost, "/v1/keys/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.HandleClear(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.True(t, cache.Cached())

	// Right token clears it.
	req = httptest.NewRequest(http.MethodPost, "/v1/keys/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer op-token")
	rec = httptest.NewRecorder()
	h.HandleClear(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, cache.Cached())
}

func TestKeyCacheHandlerDisabledWithoutToken(t *testing.T) {
	h := &KeyCacheHandler{Keys: jwtx.NewKeyCache(nil), AdminToken: "", Logger: slog.Default()}

	req := httptest.NewRequest(http.MethodPost, "/v1/keys/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	h.HandleClear(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
