package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"admin-console/internal/model"
)

type fakeToolkit struct {
	server        *httptest.Server
	refreshCalls  atomic.Int32
	rejectRefresh atomic.Bool
}

func newFakeToolkit(t *testing.T) *fakeToolkit {
	t.Helper()

	tk := &fakeToolkit{}
	mux := http.NewServeMux()
	mux.HandleFunc("/signIn", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.Password != "correctpass" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_LOGIN_CREDENTIALS"}}`))
			return
		}

		_ = json.NewEncoder(w).Encode(model.SignInResult{
			LocalID:      "uid-1",
			Email:        body.Email,
			DisplayName:  "Admin",
			IDToken:      mintToken(t, "initial"),
			RefreshToken: "refresh-1",
			ExpiresIn:    "3600",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tk.refreshCalls.Add(1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))

		if tk.rejectRefresh.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"TOKEN_EXPIRED"}}`))
			return
		}

		_ = json.NewEncoder(w).Encode(model.RefreshResult{
			IDToken:      mintToken(t, "refreshed"),
			RefreshToken: "refresh-2",
			ExpiresIn:    "3600",
			UserID:       "uid-1",
		})
	})

	tk.server = httptest.NewServer(mux)
	t.Cleanup(tk.server.Close)
	return tk
}

func (tk *fakeToolkit) provider() *RESTProvider {
	return NewRESTProvider(RESTConfig{
		SignInURL: tk.server.URL + "/signIn",
		TokenURL:  tk.server.URL + "/token",
		APIKey:    "test-key",
		Timeout:   2 * time.Second,
	})
}

func mintToken(t *testing.T, nonce string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "uid-1",
		"nonce": nonce,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return token
}

func tokenNonce(t *testing.T, token string) string {
	t.Helper()

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	nonce, _ := claims["nonce"].(string)
	return nonce
}

type recorder struct {
	mu     sync.Mutex
	events []*model.Identity
}

func (r *recorder) listen(id *model.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, id)
}

func (r *recorder) snapshot() []*model.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Identity(nil), r.events...)
}

func TestRESTProviderSignIn(t *testing.T) {
	t.Parallel()

	tk := newFakeToolkit(t)

	t.Run("valid credentials notify subscribers", func(t *testing.T) {
		p := tk.provider()
		rec := &recorder{}
		unsubscribe := p.Subscribe(rec.listen)
		defer unsubscribe()

		got, err := p.SignIn(context.Background(), "admin@x.com", "correctpass")
		require.NoError(t, err)
		require.Equal(t, "uid-1", got.UID)

		events := rec.snapshot()
		require.Len(t, events, 2)
		require.Nil(t, events[0])
		require.Equal(t, "admin@x.com", events[1].Email)
	})

	t.Run("wrong password is invalid credentials", func(t *testing.T) {
		p := tk.provider()

		_, err := p.SignIn(context.Background(), "admin@x.com", "wrongpass")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)

		_, err = p.Token(context.Background(), false)
		require.ErrorIs(t, err, model.ErrNotSignedIn)
	})

	t.Run("unreachable provider is a network error", func(t *testing.T) {
		p := NewRESTProvider(RESTConfig{SignInURL: "http://127.0.0.1:1/signIn", Timeout: time.Second})

		_, err := p.SignIn(context.Background(), "admin@x.com", "correctpass")
		require.ErrorIs(t, err, model.ErrNetwork)
	})
}

func TestRESTProviderToken(t *testing.T) {
	t.Parallel()

	t.Run("cached unless forced", func(t *testing.T) {
		tk := newFakeToolkit(t)
		p := tk.provider()
		_, err := p.SignIn(context.Background(), "admin@x.com", "correctpass")
		require.NoError(t, err)

		token, err := p.Token(context.Background(), false)
		require.NoError(t, err)
		require.Equal(t, "initial", tokenNonce(t, token))
		require.EqualValues(t, 0, tk.refreshCalls.Load())

		token, err = p.Token(context.Background(), true)
		require.NoError(t, err)
		require.Equal(t, "refreshed", tokenNonce(t, token))
		require.EqualValues(t, 1, tk.refreshCalls.Load())
	})

	t.Run("rejected refresh signs the identity out", func(t *testing.T) {
		tk := newFakeToolkit(t)
		p := tk.provider()
		rec := &recorder{}
		defer p.Subscribe(rec.listen)()

		_, err := p.SignIn(context.Background(), "admin@x.com", "correctpass")
		require.NoError(t, err)

		tk.rejectRefresh.Store(true)
		_, err = p.Token(context.Background(), true)
		require.ErrorIs(t, err, model.ErrNotSignedIn)

		events := rec.snapshot()
		require.Len(t, events, 3)
		require.Nil(t, events[2])
	})
}

func TestRESTProviderSignOut(t *testing.T) {
	t.Parallel()

	tk := newFakeToolkit(t)
	p := tk.provider()
	rec := &recorder{}
	unsubscribe := p.Subscribe(rec.listen)

	require.NoError(t, p.SignOut(context.Background()))
	require.Len(t, rec.snapshot(), 1, "signing out while signed out is silent")

	_, err := p.SignIn(context.Background(), "admin@x.com", "correctpass")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(context.Background()))
	require.Len(t, rec.snapshot(), 3)

	unsubscribe()
	unsubscribe()

	_, err = p.SignIn(context.Background(), "admin@x.com", "correctpass")
	require.NoError(t, err)
	require.Len(t, rec.snapshot(), 3, "no events after unsubscribe")
}
