//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"admin-console/internal/app"
	"admin-console/internal/config"
	"admin-console/internal/handler"
	"admin-console/internal/middleware"
	"admin-console/internal/model"
	"admin-console/internal/router"
)

const testPassword = "Password123!"

type authdHarness struct {
	server    *httptest.Server
	authority *app.Authority
}

// newAuthdHarness serves the authority against DATABASE_URL. Tests are
// skipped when it is unset.
func newAuthdHarness(t *testing.T, authRPM int) *authdHarness {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	cfg := &config.AuthdConfig{
		Server: config.Server{
			RequestTimeout:   10 * time.Second,
			RateLimitRPM:     1000,
			AuthRateLimitRPM: authRPM,
		},
		DatabaseURL:      databaseURL,
		DBMaxConns:       4,
		DBConnectTimeout: 5 * time.Second,
		JWTSecret:        "integration-secret-integration-secret",
		IDTokenTTL:       time.Hour,
		RefreshTokenTTL:  24 * time.Hour,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	authority, err := app.OpenAuthority(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(authority.Close)

	server := httptest.NewServer(router.NewAuthd(cfg, router.Authd{
		Auth:     middleware.NewBearerAuth(authority.Identities),
		Identity: handler.NewIdentityHandler(authority.Identities),
		Verify:   handler.NewVerifyHandler(authority.Admins),
		Audit:    handler.NewAuditHandler(authority.Audit, authority.Admins),
	}))
	t.Cleanup(server.Close)

	return &authdHarness{server: server, authority: authority}
}

// newIdentity creates an identity with a unique email so tests can share
// one database.
func (h *authdHarness) newIdentity(t *testing.T, role string, access ...string) string {
	t.Helper()

	ctx := context.Background()
	email := "it-" + uuid.NewString() + "@example.com"
	_, err := h.authority.Identities.CreateIdentity(ctx, email, testPassword, "Integration")
	require.NoError(t, err)

	if role != "" {
		_, err = h.authority.Admins.Grant(ctx, email, role, access)
		require.NoError(t, err)
	}
	return email
}

func (h *authdHarness) signIn(t *testing.T, email string, password string) (*http.Response, model.SignInResult) {
	t.Helper()

	body, err := json.Marshal(map[string]any{"email": email, "password": password, "returnSecureToken": true})
	require.NoError(t, err)

	resp, err := http.Post(h.server.URL+"/v1/accounts:signInWithPassword", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var result model.SignInResult
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	}
	return resp, result
}

func (h *authdHarness) bearer(t *testing.T, method string, path string, idToken string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, h.server.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+idToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
