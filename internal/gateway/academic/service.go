package academic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/redgumnet/edgegate/internal/gateway/upstream"
)

// Service runs the password-reset chain: confirm the academic credential
// with the portal, then push the new password to the auth provider's admin
// endpoint through the upstream registry (which injects the admin service
// key). Strictly sequential, no retries; each step's failure surfaces as-is.
type Service struct {
	Portal   *Client
	Registry *upstream.Registry

	// AuthUpstream names the auth provider entry in the registry;
	// ResetPath is the admin endpoint on it that updates a password.
	AuthUpstream string
	ResetPath    string
}

// VerifyCredential checks a student ID and portal password pair.
func (s *Service) VerifyCredential(ctx context.Context, studentID, password string) (bool, error) {
	return s.Portal.Verify(ctx, studentID, password)
}

// ResetPassword validates the academic credential and, only on success,
// updates the user's password at the auth provider.
func (s *Service) ResetPassword(ctx context.Context, studentID, portalPassword, newPassword string) error {
	valid, err := s.Portal.Verify(ctx, studentID, portalPassword)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidCredential
	}

	payload, err := json.Marshal(map[string]string{
		"user":     studentID,
		"password": newPassword,
	})
	if err != nil {
		return fmt.Errorf("academic: marshal reset payload: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")

	resp, err := s.Registry.Do(ctx, s.AuthUpstream, http.MethodPost, s.ResetPath,
		bytes.NewReader(payload), hdr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("academic: password update failed: status %d: %s",
			resp.StatusCode, string(body))
	}
	return nil
}
