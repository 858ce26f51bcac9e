package middleware

import (
	"log/slog"
	"net/http"

	"admin-console/internal/routes"
	"admin-console/internal/session"
)

// PageVisitor is told about every page request the guard lets through.
type PageVisitor interface {
	Visit(path string)
}

// RouteGuard is the coarse, cookie-presence check in front of the console
// pages. Whether the cookie still holds a valid session is decided by the
// auth context and the permission gate.
type RouteGuard struct {
	cookie  session.CookiePolicy
	visitor PageVisitor
}

func NewRouteGuard(cookie session.CookiePolicy, visitor PageVisitor) *RouteGuard {
	return &RouteGuard{cookie: cookie, visitor: visitor}
}

func (g *RouteGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := routes.Classify(r.URL.Path)
		if class == routes.API || class == routes.Static {
			next.ServeHTTP(w, r)
			return
		}

		if stripped, ok := routes.StripLegacyPrefix(r.URL.Path); ok {
			target := stripped
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}

		hasSession := g.cookie.Present(r)
		switch {
		case class == routes.Protected && !hasSession:
			slog.Debug("no session cookie, redirecting to login", "path", r.URL.Path)
			http.Redirect(w, r, routes.Login, http.StatusTemporaryRedirect)
			return
		case class == routes.Public && hasSession:
			http.Redirect(w, r, routes.Landing, http.StatusTemporaryRedirect)
			return
		}

		if g.visitor != nil && r.Method == http.MethodGet {
			g.visitor.Visit(r.URL.Path)
		}

		next.ServeHTTP(w, r)
	})
}

// SessionCookie keeps a bound browser cookie in step with the session
// store. A cookie holding a token a refresh has replaced gets the current
// one; any other cookie that does not match the store is expired.
func SessionCookie(cookie session.CookiePolicy, store session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := routes.Classify(r.URL.Path)
			if class == routes.Static {
				next.ServeHTTP(w, r)
				return
			}

			if current, present := cookie.Value(r); present {
				switch store.Match(current) {
				case session.MatchCurrent:
				case session.MatchSuperseded:
					if token, ok := store.Get(); ok {
						http.SetCookie(w, cookie.Cookie(token))
					}
				default:
					http.SetCookie(w, cookie.Expired())
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionBinding admits only requests whose cookie belongs to the
// signed-in administrator's session. Cookie presence is not enough.
type SessionBinding struct {
	cookie session.CookiePolicy
	store  session.Store
}

func NewSessionBinding(cookie session.CookiePolicy, store session.Store) *SessionBinding {
	return &SessionBinding{cookie: cookie, store: store}
}

// RequireAPI answers 401 to unbound requests.
func (b *SessionBinding) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.cookie.Bound(r, b.store) {
			writeUnauthorized(w, "a console session is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePage sends unbound page requests to the login page and drops
// whatever cookie they carried.
func (b *SessionBinding) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.cookie.Bound(r, b.store) {
			if b.cookie.Present(r) {
				http.SetCookie(w, b.cookie.Expired())
			}
			http.Redirect(w, r, routes.Login, http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}
