package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"admin-console/internal/authctx"
	"admin-console/internal/model"
	"admin-console/internal/session"
)

type fakeConsole struct {
	mu         sync.Mutex
	snap       authctx.Snapshot
	store      *session.MemoryStore
	loginErr   error
	refreshErr error
	logins     int
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{
		snap:  authctx.Snapshot{State: authctx.StateAnonymous},
		store: session.NewMemoryStore(),
	}
}

func (f *fakeConsole) Snapshot() authctx.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeConsole) Login(_ context.Context, email string, _ string) (*model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}

	p := &model.Principal{ID: "u1", Email: email, Role: model.RoleSuperAdmin, Permissions: model.NewPermissionSet()}
	f.store.Set("token-1", time.Hour)
	f.snap = authctx.Snapshot{State: authctx.StateAuthenticated, Principal: p, Version: 1}
	return p, nil
}

func (f *fakeConsole) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.store.Clear()
	f.snap = authctx.Snapshot{State: authctx.StateAnonymous, Version: f.snap.Version + 1}
	return nil
}

func (f *fakeConsole) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshErr
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", session.CookieName)
	return nil
}

func newSessionHandler(console *fakeConsole) *SessionHandler {
	return NewSessionHandler(console, console.store, session.DefaultCookiePolicy(false))
}

func TestSessionHandlerLogin(t *testing.T) {
	t.Parallel()

	t.Run("success mirrors the session cookie", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/session/login", strings.NewReader(`{"email":" admin@x.com ","password":"correctpass"}`))

		newSessionHandler(console).Login(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "token-1", sessionCookie(t, rec).Value)
		require.True(t, sessionCookie(t, rec).HttpOnly)

		var view authctx.View
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
		require.Equal(t, authctx.StateAuthenticated, view.State)
		require.Equal(t, "admin@x.com", view.Principal.Email)
	})

	t.Run("wrong password expires the cookie", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		console.loginErr = fmt.Errorf("%w: INVALID_LOGIN_CREDENTIALS", model.ErrInvalidCredentials)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/session/login", strings.NewReader(`{"email":"admin@x.com","password":"wrong"}`))

		newSessionHandler(console).Login(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "INVALID_CREDENTIALS", decodeEnvelope(t, rec).Error.Code)
		require.Less(t, sessionCookie(t, rec).MaxAge, 0)
	})

	t.Run("failed login never hands out the live session", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		_, err := console.Login(context.Background(), "admin@x.com", "correctpass")
		require.NoError(t, err)
		console.loginErr = model.ErrInvalidCredentials

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/session/login", strings.NewReader(`{"email":"intruder@x.com","password":"guess"}`))
		newSessionHandler(console).Login(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		cookie := sessionCookie(t, rec)
		require.Empty(t, cookie.Value)
		require.Less(t, cookie.MaxAge, 0)
	})

	t.Run("not an admin", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		console.loginErr = fmt.Errorf("%w: not an admin", model.ErrForbidden)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/session/login", strings.NewReader(`{"email":"admin@x.com","password":"correctpass"}`))

		newSessionHandler(console).Login(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "NOT_AUTHORIZED", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("malformed bodies never reach the provider", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		h := newSessionHandler(console)

		for _, body := range []string{`{`, `{"email":"","password":"x"}`, `{"email":"a@x.com"}`} {
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/session/login", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		require.Zero(t, console.logins)
	})
}

func TestSessionHandlerLogout(t *testing.T) {
	t.Parallel()

	console := newFakeConsole()
	h := newSessionHandler(console)
	_, err := console.Login(context.Background(), "admin@x.com", "correctpass")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/session/logout", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Less(t, sessionCookie(t, rec).MaxAge, 0)

	var view authctx.View
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
	require.Equal(t, authctx.StateAnonymous, view.State)
	require.Nil(t, view.Principal)
}

func TestSessionHandlerCurrent(t *testing.T) {
	t.Parallel()

	current := func(t *testing.T, console *fakeConsole, cookie string) authctx.View {
		t.Helper()

		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie})
		}
		rec := httptest.NewRecorder()
		newSessionHandler(console).Current(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Result().Cookies())

		var view authctx.View
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
		return view
	}

	t.Run("anonymous console", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, authctx.StateAnonymous, current(t, newFakeConsole(), "").State)
	})

	t.Run("session holder sees the principal", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		_, err := console.Login(context.Background(), "admin@x.com", "correctpass")
		require.NoError(t, err)

		view := current(t, console, "token-1")
		require.Equal(t, authctx.StateAuthenticated, view.State)
		require.Equal(t, "admin@x.com", view.Principal.Email)
	})

	t.Run("other callers see a signed-out console", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		_, err := console.Login(context.Background(), "admin@x.com", "correctpass")
		require.NoError(t, err)

		for _, cookie := range []string{"", "forged"} {
			view := current(t, console, cookie)
			require.Equal(t, authctx.StateAnonymous, view.State, cookie)
			require.Nil(t, view.Principal, cookie)
		}
	})
}

func TestSessionHandlerRefresh(t *testing.T) {
	t.Parallel()

	t.Run("backend outage keeps the session", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		_, err := console.Login(context.Background(), "admin@x.com", "correctpass")
		require.NoError(t, err)
		console.refreshErr = fmt.Errorf("%w: verify returned status 502", model.ErrServiceUnavailable)

		rec := httptest.NewRecorder()
		newSessionHandler(console).Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/session/refresh", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Result().Cookies())
		token, ok := console.store.Get()
		require.True(t, ok)
		require.Equal(t, "token-1", token)
	})

	t.Run("expired session", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		console.refreshErr = model.ErrUnauthorized

		rec := httptest.NewRecorder()
		newSessionHandler(console).Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/session/refresh", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Less(t, sessionCookie(t, rec).MaxAge, 0)
	})

	t.Run("superseded by a newer sign-in", func(t *testing.T) {
		t.Parallel()

		console := newFakeConsole()
		console.refreshErr = authctx.ErrSuperseded

		rec := httptest.NewRecorder()
		newSessionHandler(console).Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/session/refresh", nil))

		require.Equal(t, http.StatusConflict, rec.Code)
	})
}
