package jwtx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// KeyCache fetches and retains the identity provider's published key set.
//
// The cache populates once per process: the first call that misses fetches
// the JWKS document, imports every key, and stores the mapping. Every later
// call returns the stored mapping without touching the network, even if the
// provider rotates keys underneath us. That staleness is accepted; Clear
// exists so an operator can force a refetch without restarting the process.
type KeyCache struct {
	client *http.Client

	mu   sync.RWMutex
	keys map[string]any // kid: *rsa.PublicKey | *ecdsa.PublicKey | ed25519.PublicKey
}

// NewKeyCache returns an empty cache using the given HTTP client, or
// http.DefaultClient when nil.
func NewKeyCache(client *http.Client) *KeyCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &KeyCache{client: client}
}

// Keys returns the kid-to-public-key mapping, fetching jwksURL only when
// nothing is cached yet. Concurrent first calls may each fetch redundantly;
// the import is deterministic for the same document, so the last writer
// overwrites with equivalent data and no lock ordering matters.
func (c *KeyCache) Keys(ctx context.Context, jwksURL string) (map[string]any, error) {
	c.mu.RLock()
	cached := c.keys
	c.mu.RUnlock()

	if cached != nil {
		return cached, nil
	}

	keys, err := c.fetch(ctx, jwksURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys = keys
	c.mu.Unlock()

	return keys, nil
}

// Clear drops the cached key set so the next Keys call refetches. This is the
// only invalidation the cache has.
func (c *KeyCache) Clear() {
	c.mu.Lock()
	c.keys = nil
	c.mu.Unlock()
}

// Cached reports whether a key set is currently held.
func (c *KeyCache) Cached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys != nil
}

// fetch GETs the JWKS document and imports every key. Any failure fails the
// whole call so the cache never holds a partial mapping.
func (c *KeyCache) fetch(ctx context.Context, jwksURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, &KeySetFetchError{Reason: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &KeySetFetchError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &KeySetFetchError{Status: resp.StatusCode, Reason: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &KeySetFetchError{Status: resp.StatusCode, Body: string(body)}
	}

	var jwks JWKS
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, &KeySetFetchError{Status: resp.StatusCode, Reason: "invalid JWKS document: " + err.Error()}
	}
	if len(jwks.Keys) == 0 {
		return nil, &KeySetFetchError{Status: resp.StatusCode, Reason: "no keys found"}
	}

	keys := make(map[string]any, len(jwks.Keys))
	for _, j := range jwks.Keys {
		pub, err := j.PublicKey()
		if err != nil {
			return nil, &KeySetFetchError{Reason: fmt.Sprintf("import key %q: %v", j.Kid, err)}
		}
		keys[j.Kid] = pub
	}

	return keys, nil
}
