package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/redgumnet/edgegate/pkg/jwtx"
)

// KeyCacheHandler exposes the manual cache-clear operation. The key cache
// never refreshes on its own, so when the identity provider rotates keys an
// operator hits this endpoint instead of redeploying the gateway.
type KeyCacheHandler struct {
	Keys       *jwtx.KeyCache
	AdminToken string
	Logger     *slog.Logger
}

// HandleClear drops the cached key set. Guarded by the static admin token,
// not by JWT verification: this endpoint must keep working when the key
// path itself is what's broken.
func (h *KeyCacheHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if h.AdminToken == "" {
		// Endpoint disabled when no admin token is configured.
		http.NotFound(w, r)
		return
	}

	presented := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	if subtle.ConstantTimeCompare([]byte(presented), []byte(h.AdminToken)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	h.Keys.Clear()
	h.Logger.Info("key cache cleared by operator")
	w.WriteHeader(http.StatusNoContent)
}
