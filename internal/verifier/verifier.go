// Package verifier exchanges an ID token for a Principal at the backend's
// verify endpoint. The backend is the only authority for admin rights.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"admin-console/internal/model"
)

const DefaultPath = "/admin-auth/verify"

type Client struct {
	endpoint string
	client   *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + DefaultPath,
		client:   &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	Success bool              `json:"success"`
	Data    *model.VerifyData `json:"data"`
	Error   *model.APIError   `json:"error"`
}

func (c *Client) Verify(ctx context.Context, token string) (*model.Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", model.ErrUnauthorized)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrServiceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: token rejected", model.ErrUnauthorized)
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: not an admin", model.ErrForbidden)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: verify returned status %d", model.ErrServiceUnavailable, resp.StatusCode)
	}

	var parsed verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %v", model.ErrServiceUnavailable, err)
	}

	if !parsed.Success || parsed.Data == nil {
		return nil, fmt.Errorf("%w: verification unsuccessful", model.ErrUnauthorized)
	}

	return Normalize(parsed.Data.User)
}

// Normalize turns the wire user into a Principal. Roles outside the enum
// are refused; unknown permission tags are dropped.
func Normalize(user model.VerifiedUser) (*model.Principal, error) {
	if strings.TrimSpace(user.ID) == "" {
		return nil, fmt.Errorf("%w: verify response has no user id", model.ErrUnauthorized)
	}

	role := model.RoleSuperAdmin
	if !user.IsSuperAdmin {
		parsed, err := model.ParseRole(user.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrForbidden, err)
		}
		role = parsed
	}

	perms := model.NewPermissionSet()
	for _, raw := range user.AdminAccess {
		perm, err := model.ParsePermission(raw)
		if err != nil {
			slog.Warn("dropping unknown permission from verify response", "user_id", user.ID, "permission", raw)
			continue
		}
		perms[perm] = struct{}{}
	}

	return &model.Principal{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        role,
		Permissions: perms,
	}, nil
}
