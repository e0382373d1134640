package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

var ErrUnknownUpstream = errors.New("upstream: unknown upstream")

// Upstream is one configured backend the gateway forwards to. Headers hold
// the server-side credentials (service keys, API tokens) attached to every
// outbound request; clients never see these values.
type Upstream struct {
	Name    string
	BaseURL string
	Headers map[string]string
}

// Registry resolves upstream names and executes outbound requests with the
// upstream's credential headers attached.
type Registry struct {
	client    *http.Client
	upstreams map[string]Upstream
}

// NewRegistry builds a Registry over the given upstream table. A nil client
// falls back to http.DefaultClient; the hosting runtime's request deadline
// bounds outbound calls, no extra timeout is layered here.
func NewRegistry(client *http.Client, ups []Upstream) *Registry {
	if client == nil {
		client = http.DefaultClient
	}

	table := make(map[string]Upstream, len(ups))
	for _, u := range ups {
		u.BaseURL = strings.TrimRight(u.BaseURL, "/")
		table[u.Name] = u
	}

	return &Registry{client: client, upstreams: table}
}

// Get returns the named upstream.
func (r *Registry) Get(name string) (Upstream, bool) {
	u, ok := r.upstreams[name]
	return u, ok
}

// Names lists configured upstream names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.upstreams))
	for name := range r.upstreams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Do executes a request against the named upstream. pathAndQuery is joined
// to the upstream base URL; extra headers are applied first, then the
// upstream's credential table so configured credentials always win. The
// caller owns the response body.
func (r *Registry) Do(
	ctx context.Context,
	name, method, pathAndQuery string,
	body io.Reader,
	extra http.Header,
) (*http.Response, error) {
	u, ok := r.upstreams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUpstream, name)
	}

	if !strings.HasPrefix(pathAndQuery, "/") {
		pathAndQuery = "/" + pathAndQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, u.BaseURL+pathAndQuery, body)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}

	for key, values := range extra {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, value := range u.Headers {
		req.Header.Set(key, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s: %w", name, err)
	}
	return resp, nil
}
