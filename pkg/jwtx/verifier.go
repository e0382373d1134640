package jwtx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks bearer tokens against two trust roots in a fixed order:
// the shared secret first (cheap, no network call), then the provider's
// published keys when the token header points at one. The provider may sign
// under either scheme depending on how it's configured, so neither stage can
// be assumed for a given token.
type Verifier struct {
	jwksURL string
	secret  []byte
	keys    *KeyCache
	logger  *slog.Logger
}

// NewVerifier builds a Verifier. The jwksURL and secret are fixed for the
// Verifier's lifetime; keys is shared process-wide so every Verifier sees
// the same cache.
func NewVerifier(jwksURL string, secret []byte, keys *KeyCache, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		jwksURL: jwksURL,
		secret:  secret,
		keys:    keys,
		logger:  logger,
	}
}

// tokenHeader is the unverified JOSE header, decoded only to learn which
// verification path applies.
type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Verify authenticates the token and returns its claims, or one of the
// package's classified errors. Expired tokens fail closed at whichever stage
// validated the signature.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	hdr, err := decodeHeader(token)
	if err != nil {
		return nil, err
	}

	// Stage 1: shared-secret verification.
	claims, err := v.verifyWithSecret(token, hdr.Alg)
	if err == nil {
		v.logExpiry(claims)
		return claims, nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		// The secret matched but the token is past exp.
		return nil, ErrExpired
	}

	// Stage 2 only applies when the header names an asymmetric algorithm
	// and a kid. A token declaring HS* with a wrong secret never falls
	// over to key-based verification, even when it carries a kid.
	if hdr.Alg == "" || isHMACAlg(hdr.Alg) || hdr.Kid == "" {
		return nil, ErrNoVerifyMethod
	}

	keys, err := v.keys.Keys(ctx, v.jwksURL)
	if err != nil {
		// Key Cache failures propagate unchanged.
		return nil, err
	}

	pub, ok := keys[hdr.Kid]
	if !ok {
		return nil, ErrKeyNotFound
	}

	claims, err = v.verifyWithKey(token, hdr.Alg, pub)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}

	v.logExpiry(claims)
	return claims, nil
}

// verifyWithSecret attempts HMAC verification. The accepted algorithm is
// constrained to the declared one when the header names an HS* variant,
// otherwise HS256.
func (v *Verifier) verifyWithSecret(token, alg string) (*Claims, error) {
	method := jwt.SigningMethodHS256.Alg()
	if isHMACAlg(alg) {
		method = alg
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{method}))
	if _, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// verifyWithKey verifies with a public key from the key set, constrained to
// the declared algorithm.
func (v *Verifier) verifyWithKey(token, alg string, pub any) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{alg}))
	if _, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return pub, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// logExpiry records how long the token has left. Informational only; expiry
// enforcement happens inside the verification itself.
func (v *Verifier) logExpiry(claims *Claims) {
	v.logger.Debug("token verified",
		"sub", claims.Subject,
		"expires_in", claims.ExpiresIn(time.Now().UTC()).String(),
	)
}

// decodeHeader reads alg and kid from the first token segment without
// verifying anything. No network access on any failure path here.
func decodeHeader(token string) (tokenHeader, error) {
	var hdr tokenHeader

	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" {
		return hdr, ErrMalformed
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[0], "="))
	if err != nil {
		return hdr, ErrMalformed
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return hdr, ErrMalformed
	}

	return hdr, nil
}

func isHMACAlg(alg string) bool {
	return strings.HasPrefix(alg, "HS")
}
