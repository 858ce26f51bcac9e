package session

import (
	"net/http"
	"strings"
	"time"
)

const CookieName = "session"

// CookiePolicy controls the attributes of the session cookie.
type CookiePolicy struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

func DefaultCookiePolicy(production bool) CookiePolicy {
	return CookiePolicy{
		Name:     CookieName,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
		TTL:      7 * 24 * time.Hour,
	}
}

func (p CookiePolicy) name() string {
	if strings.TrimSpace(p.Name) == "" {
		return CookieName
	}
	return p.Name
}

// Cookie builds the session cookie carrying token.
func (p CookiePolicy) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     p.name(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.TTL.Seconds()),
		Expires:  time.Now().Add(p.TTL),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}

// Expired builds the cookie that deletes the session cookie in the browser.
func (p CookiePolicy) Expired() *http.Cookie {
	return &http.Cookie{
		Name:     p.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}

// Present reports whether r carries a non-empty session cookie.
func (p CookiePolicy) Present(r *http.Request) bool {
	_, ok := p.Value(r)
	return ok
}

func (p CookiePolicy) Value(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(p.name())
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}

// Bound reports whether r's cookie belongs to the session in store, either
// as its current token or as one a refresh has since replaced.
func (p CookiePolicy) Bound(r *http.Request, store Store) bool {
	value, ok := p.Value(r)
	return ok && store.Match(value) != NoMatch
}

// Mirror writes the store's current token to the browser, or expires the
// cookie when the store is empty. Call it only for a request that just
// established the session or is bound to it.
func (p CookiePolicy) Mirror(w http.ResponseWriter, store Store) {
	if token, ok := store.Get(); ok {
		http.SetCookie(w, p.Cookie(token))
		return
	}
	http.SetCookie(w, p.Expired())
}
