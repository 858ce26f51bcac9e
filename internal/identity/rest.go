package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"admin-console/internal/model"
)

// Tokens this close to expiry are refreshed even without forceRefresh.
const expirySkew = time.Minute

// Provider error messages that mean the credentials were rejected.
var credentialErrors = map[string]struct{}{
	"INVALID_LOGIN_CREDENTIALS":   {},
	"INVALID_PASSWORD":            {},
	"EMAIL_NOT_FOUND":             {},
	"INVALID_EMAIL":               {},
	"MISSING_PASSWORD":            {},
	"USER_DISABLED":               {},
	"TOO_MANY_ATTEMPTS_TRY_LATER": {},
}

// Refresh error messages that mean the identity session is gone.
var sessionGoneErrors = map[string]struct{}{
	"TOKEN_EXPIRED":         {},
	"INVALID_REFRESH_TOKEN": {},
	"USER_NOT_FOUND":        {},
	"USER_DISABLED":         {},
}

type RESTConfig struct {
	SignInURL string
	TokenURL  string
	APIKey    string
	Timeout   time.Duration
}

// RESTProvider speaks the identity-toolkit password sign-in and
// secure-token refresh protocol.
type RESTProvider struct {
	cfg    RESTConfig
	client *http.Client
	now    func() time.Time

	refreshMu sync.Mutex

	mu           sync.Mutex
	current      *model.Identity
	idToken      string
	refreshToken string
	expiresAt    time.Time

	observers observers
}

func NewRESTProvider(cfg RESTConfig) *RESTProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &RESTProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

func (p *RESTProvider) SignIn(ctx context.Context, email string, password string) (*model.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.ErrInvalidCredentials
	}

	body, err := json.Marshal(map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.cfg.SignInURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result model.SignInResult
	if err := p.do(req, &result, credentialErrors, model.ErrInvalidCredentials); err != nil {
		return nil, err
	}

	signedIn := &model.Identity{
		UID:         result.LocalID,
		Email:       result.Email,
		DisplayName: result.DisplayName,
	}

	p.mu.Lock()
	p.current = signedIn
	p.idToken = result.IDToken
	p.refreshToken = result.RefreshToken
	p.expiresAt = p.tokenExpiry(result.IDToken, result.ExpiresIn)
	p.mu.Unlock()

	slog.Info("identity signed in", "uid", signedIn.UID)
	p.observers.notify(signedIn)

	return copyIdentity(signedIn), nil
}

// SignOut drops the local identity session. There is no remote call, so
// it succeeds regardless of network state.
func (p *RESTProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	wasSignedIn := p.current != nil
	p.clearLocked()
	p.mu.Unlock()

	if wasSignedIn {
		slog.Info("identity signed out")
		p.observers.notify(nil)
	}

	return nil
}

func (p *RESTProvider) Token(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return "", model.ErrNotSignedIn
	}
	if !forceRefresh && p.idToken != "" && p.now().Add(expirySkew).Before(p.expiresAt) {
		token := p.idToken
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	return p.refresh(ctx)
}

func (p *RESTProvider) Subscribe(fn Listener) func() {
	p.mu.Lock()
	current := copyIdentity(p.current)
	p.mu.Unlock()

	return p.observers.add(fn, current)
}

func (p *RESTProvider) refresh(ctx context.Context) (string, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	p.mu.Lock()
	owner := p.current
	refreshToken := p.refreshToken
	p.mu.Unlock()
	if owner == nil || refreshToken == "" {
		return "", model.ErrNotSignedIn
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.cfg.TokenURL), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result model.RefreshResult
	if err := p.do(req, &result, sessionGoneErrors, model.ErrNotSignedIn); err != nil {
		if errors.Is(err, model.ErrNotSignedIn) {
			slog.Warn("identity session rejected on refresh", "uid", owner.UID)
			p.dropIfCurrent(owner)
		}
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Signed out (or re-signed in) while the refresh was in flight.
	if p.current != owner {
		return "", model.ErrNotSignedIn
	}

	p.idToken = result.IDToken
	if result.RefreshToken != "" {
		p.refreshToken = result.RefreshToken
	}
	p.expiresAt = p.tokenExpiry(result.IDToken, result.ExpiresIn)

	return p.idToken, nil
}

// do executes req and decodes a 2xx JSON body into out. A 400 whose
// provider message is in rejected maps to rejectedErr; everything else
// that fails maps to model.ErrNetwork.
func (p *RESTProvider) do(req *http.Request, out any, rejected map[string]struct{}, rejectedErr error) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", model.ErrNetwork, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", model.ErrNetwork, err)
		}
		return nil
	}

	message := providerMessage(payload)
	if resp.StatusCode == http.StatusBadRequest {
		if _, ok := rejected[message]; ok {
			return fmt.Errorf("%w: %s", rejectedErr, message)
		}
	}

	return fmt.Errorf("%w: status %d %s", model.ErrNetwork, resp.StatusCode, message)
}

func (p *RESTProvider) endpoint(raw string) string {
	if p.cfg.APIKey == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("key", p.cfg.APIKey)
	u.RawQuery = q.Encode()

	return u.String()
}

// tokenExpiry reads exp from the JWT without verifying it; the backend
// verifies. expiresIn is the fallback.
func (p *RESTProvider) tokenExpiry(token string, expiresIn string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(expiresIn)); err == nil && seconds > 0 {
		return p.now().Add(time.Duration(seconds) * time.Second)
	}

	return p.now()
}

func (p *RESTProvider) dropIfCurrent(owner *model.Identity) {
	p.mu.Lock()
	if p.current != owner {
		p.mu.Unlock()
		return
	}
	p.clearLocked()
	p.mu.Unlock()

	p.observers.notify(nil)
}

func (p *RESTProvider) clearLocked() {
	p.current = nil
	p.idToken = ""
	p.refreshToken = ""
	p.expiresAt = time.Time{}
}

func providerMessage(payload []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return ""
	}

	// Messages may carry a detail suffix: "INVALID_PASSWORD : ...".
	message, _, _ := strings.Cut(parsed.Error.Message, " ")
	return strings.TrimSpace(message)
}
