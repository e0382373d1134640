// Package academic talks to the institution's credential portal, a form
// login endpoint the gateway uses to confirm that a student ID and portal
// password belong together. It is deliberately a narrow interface: one
// check, one sequential reset chain, no retries.
package academic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var ErrInvalidCredential = errors.New("academic: invalid credential")

// Client posts credentials to the portal's form endpoint and interprets the
// result. The portal answers 200 on a successful login and 401/403 when the
// credentials don't match; anything else is treated as a portal failure.
type Client struct {
	EndpointURL string
	HTTPClient  *http.Client
}

func NewClient(endpointURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{EndpointURL: endpointURL, HTTPClient: client}
}

// Verify reports whether the student ID and password are accepted by the
// portal. A false return means the portal answered and said no; an error
// means we couldn't get an answer.
func (c *Client) Verify(ctx context.Context, studentID, password string) (bool, error) {
	form := url.Values{}
	form.Set("username", studentID)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.EndpointURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("academic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("academic: portal unreachable: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("academic: portal returned status %d", resp.StatusCode)
	}
}
