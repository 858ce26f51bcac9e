package app

import (
	"context"
	"fmt"
	"net/http"

	"admin-console/internal/apiclient"
	"admin-console/internal/authctx"
	"admin-console/internal/config"
	"admin-console/internal/event"
	"admin-console/internal/gate"
	"admin-console/internal/handler"
	"admin-console/internal/identity"
	"admin-console/internal/metrics"
	"admin-console/internal/router"
	"admin-console/internal/routes"
	"admin-console/internal/session"
	"admin-console/internal/verifier"
	"admin-console/internal/websocket"
)

// Console is the admin console gateway process.
type Console struct {
	cfg    *config.ConsoleConfig
	server *http.Server
	auth   *authctx.Context
	hub    *websocket.Hub
}

func NewConsole(cfg *config.ConsoleConfig) (*Console, error) {
	bus := event.NewBus()
	m := metrics.New("console")
	store := session.NewMemoryStore()
	nav := authctx.NewBusNavigator(bus, routes.Login)

	cookie := session.DefaultCookiePolicy(cfg.Production)
	cookie.Name = cfg.CookieName
	cookie.TTL = cfg.SessionTTL

	provider := identity.NewRESTProvider(identity.RESTConfig{
		SignInURL: cfg.IdentitySignInURL,
		TokenURL:  cfg.IdentityTokenURL,
		APIKey:    cfg.IdentityAPIKey,
		Timeout:   cfg.CallTimeout,
	})

	auth, err := authctx.New(authctx.Deps{
		Provider:  provider,
		Verifier:  verifier.New(cfg.BackendURL, cfg.CallTimeout),
		Store:     store,
		Navigator: nav,
		Bus:       bus,
		Metrics:   m,
	}, authctx.Options{
		RefreshInterval: cfg.RefreshInterval,
		CallTimeout:     cfg.CallTimeout,
		SessionTTL:      cfg.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth context: %w", err)
	}

	proxy, err := apiclient.NewProxy(apiclient.New(provider, cfg.RequestTimeout, m), cfg.BackendURL, handler.WriteError)
	if err != nil {
		auth.Close()
		return nil, fmt.Errorf("failed to initialize API proxy: %w", err)
	}

	hub := websocket.NewHub(bus)
	hub.Greet(func() event.Event {
		return event.New(event.TypeSessionChanged, auth.Snapshot().View())
	})

	handlerChain := router.NewConsole(cfg, router.Console{
		Cookie:  cookie,
		Store:   store,
		Visitor: nav,
		Gate:    gate.New(auth),
		Session: handler.NewSessionHandler(auth, store, cookie),
		Pages:   handler.NewPageHandler(auth),
		Proxy:   proxy,
		Hub:     hub,
		Metrics: m.Handler(),
	})

	return &Console{
		cfg:    cfg,
		server: newServer(cfg.Server, handlerChain),
		auth:   auth,
		hub:    hub,
	}, nil
}

// Run serves until ctx is done.
func (c *Console) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		c.hub.Run(hubCtx)
	}()

	return serve(ctx, "console", c.server, c.cfg.ShutdownTimeout, []func(){
		c.auth.Close,
		func() {
			stopHub()
			<-hubDone
		},
	})
}
