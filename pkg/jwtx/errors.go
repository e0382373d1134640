package jwtx

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed means the token is structurally broken (wrong segment
	// count, undecodable or non-JSON header). Never worth retrying.
	ErrMalformed = errors.New("jwtx: malformed token")

	// ErrNoVerifyMethod means neither trust root applies: the shared secret
	// rejected the token and the header gives us nothing to look up a
	// public key with.
	ErrNoVerifyMethod = errors.New("jwtx: no usable verification method")

	// ErrKeyNotFound means the token named a kid the current key set
	// doesn't have. Usually a client error, though it can also mean our
	// cached key set is stale.
	ErrKeyNotFound = errors.New("jwtx: key not found in key set")

	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")

	// ErrKeySetFetch matches any KeySetFetchError via errors.Is. This one
	// is the operator's problem, not the caller's.
	ErrKeySetFetch = errors.New("jwtx: key set fetch failed")
)

// KeySetFetchError reports a failure to obtain or import the provider's key
// set. Status and Body carry the endpoint's response for diagnostics; Status
// is zero when the failure happened outside the HTTP exchange.
type KeySetFetchError struct {
	Status int
	Body   string
	Reason string
}

func (e *KeySetFetchError) Error() string {
	if e.Status != 0 && e.Reason == "" {
		return fmt.Sprintf("jwtx: key set fetch failed: status %d: %s", e.Status, e.Body)
	}
	return "jwtx: key set fetch failed: " + e.Reason
}

// Is lets callers match with errors.Is(err, ErrKeySetFetch) without knowing
// the concrete type.
func (e *KeySetFetchError) Is(target error) bool { return target == ErrKeySetFetch }
