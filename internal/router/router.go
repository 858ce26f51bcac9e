package router

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"admin-console/internal/config"
	"admin-console/internal/gate"
	"admin-console/internal/handler"
	"admin-console/internal/middleware"
	"admin-console/internal/routes"
	"admin-console/internal/session"
	"admin-console/internal/websocket"
)

// Console is everything the gateway router serves.
type Console struct {
	Cookie  session.CookiePolicy
	Store   session.Store
	Visitor middleware.PageVisitor
	Gate    *gate.Gate
	Session *handler.SessionHandler
	Pages   *handler.PageHandler
	Proxy   http.Handler
	Hub     *websocket.Hub
	Metrics http.Handler
}

func NewConsole(cfg *config.ConsoleConfig, c Console) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, "/api/session/login")

	r.Use(middleware.Recovery)
	r.Use(middleware.NewLogging(middleware.LoggingOptions{RouteClass: true}))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)
	r.Use(middleware.SessionCookie(c.Cookie, c.Store))
	r.Use(middleware.NewRouteGuard(c.Cookie, c.Visitor).Handler)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	binding := middleware.NewSessionBinding(c.Cookie, c.Store)

	r.Get("/health", health)
	r.Handle("/metrics", c.Metrics)
	r.With(binding.RequireAPI).Handle(routes.Events, c.Hub.Handler(originChecker(cfg.CORSOrigins)))

	r.Route("/api/session", func(s chi.Router) {
		s.Get("/", c.Session.Current)
		s.Post("/login", c.Session.Login)
		s.With(binding.RequireAPI).Post("/logout", c.Session.Logout)
		s.With(binding.RequireAPI).Post("/refresh", c.Session.Refresh)
	})
	r.With(binding.RequireAPI).Handle("/api/*", c.Proxy)

	r.Get(routes.Login, c.Pages.Login)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, routes.Landing, http.StatusTemporaryRedirect)
	})
	for _, section := range handler.Sections() {
		r.With(binding.RequirePage, c.Gate.Require(section.Permission)).Get(section.Path, c.Pages.Section(section))
	}

	return r
}

// Authd is everything the authority router serves.
type Authd struct {
	Auth     *middleware.BearerAuth
	Identity *handler.IdentityHandler
	Verify   *handler.VerifyHandler
	Audit    *handler.AuditHandler
	Health   http.HandlerFunc
}

func NewAuthd(cfg *config.AuthdConfig, a Authd) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, "/v1/accounts", "/v1/token")

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	if a.Health != nil {
		r.Get("/health", a.Health)
	} else {
		r.Get("/health", health)
	}

	r.Post("/v1/accounts:signInWithPassword", a.Identity.SignInWithPassword)
	r.Post("/v1/token", a.Identity.Token)
	r.Route("/admin-auth", func(r chi.Router) {
		r.Use(a.Auth.RequireIDToken)
		r.Post("/verify", a.Verify.Verify)
		if a.Audit != nil {
			r.Get("/audit", a.Audit.List)
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// originChecker admits websocket upgrades from the configured origins. With
// none configured the upgrader's same-origin check applies.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
}
