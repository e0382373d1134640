package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the gateway cares about. Identity providers
// attach plenty more; unknown fields are ignored rather than rejected so we
// stay compatible as the provider evolves.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user, when the provider includes it.
	// Mask this before it goes anywhere near a log line.
	Email string `json:"email,omitempty"`

	// Role assigned by the identity provider, e.g. "authenticated".
	Role string `json:"role,omitempty"`
}

// ExpiresIn returns the time remaining until expiry, negative once past.
// Zero when the token carries no exp claim.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
