package httpx

import (
	"context"

	"github.com/redgumnet/edgegate/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
)

// ClaimsFromContext returns the verified claims attached by AuthnMiddleware,
// or nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *jwtx.Claims {
	if c, ok := ctx.Value(CtxKeyClaims).(*jwtx.Claims); ok {
		return c
	}
	return nil
}

// UserIDFromContext returns the authenticated subject, or "" when absent.
func UserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return s
	}
	return ""
}

func contextWithAuth(ctx context.Context, c *jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	return context.WithValue(ctx, CtxKeyClaims, c)
}
