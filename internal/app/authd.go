package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"admin-console/internal/config"
	"admin-console/internal/database"
	"admin-console/internal/handler"
	"admin-console/internal/middleware"
	"admin-console/internal/repository"
	"admin-console/internal/router"
	"admin-console/internal/service"
)

// Authority holds the authd services over an open database.
type Authority struct {
	DB         *database.DB
	Identities *service.IdentityService
	Admins     *service.VerifyService
	Audit      *service.AuditService
}

// OpenAuthority connects to the database, ensures the schema and builds
// the services. Callers must Close it.
func OpenAuthority(ctx context.Context, cfg *config.AuthdConfig) (*Authority, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	identityRepo := repository.NewIdentityRepository(db.Pool)
	adminRepo := repository.NewAdminRepository(db.Pool)
	tokenRepo := repository.NewTokenRepository(db.Pool)
	auditService := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	slog.Info("database ready")

	identityService := service.NewIdentityService(identityRepo, adminRepo, tokenRepo, cfg.JWTSecret, cfg.IDTokenTTL, cfg.RefreshTokenTTL)
	identityService.UseAudit(auditService)
	verifyService := service.NewVerifyService(adminRepo, identityRepo)
	verifyService.UseAudit(auditService)

	return &Authority{
		DB:         db,
		Identities: identityService,
		Admins:     verifyService,
		Audit:      auditService,
	}, nil
}

func (a *Authority) Close() {
	a.DB.Close()
}

// Authd is the identity and verify authority process.
type Authd struct {
	cfg       *config.AuthdConfig
	server    *http.Server
	authority *Authority
}

func NewAuthd(ctx context.Context, cfg *config.AuthdConfig) (*Authd, error) {
	authority, err := OpenAuthority(ctx, cfg)
	if err != nil {
		return nil, err
	}

	handlerChain := router.NewAuthd(cfg, router.Authd{
		Auth:     middleware.NewBearerAuth(authority.Identities),
		Identity: handler.NewIdentityHandler(authority.Identities),
		Verify:   handler.NewVerifyHandler(authority.Admins),
		Audit:    handler.NewAuditHandler(authority.Audit, authority.Admins),
		Health: func(w http.ResponseWriter, r *http.Request) {
			if err := authority.DB.Health(r.Context()); err != nil {
				slog.Warn("database health check failed", "error", err)
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		},
	})

	return &Authd{
		cfg:       cfg,
		server:    newServer(cfg.Server, handlerChain),
		authority: authority,
	}, nil
}

// Run serves until ctx is done, sweeping expired refresh tokens meanwhile.
func (a *Authd) Run(ctx context.Context) error {
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go a.sweepTokens(cleanupCtx)

	return serve(ctx, "authd", a.server, a.cfg.ShutdownTimeout, []func(){
		stopCleanup,
		a.authority.Close,
	})
}

func (a *Authd) sweepTokens(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.authority.Identities.CleanExpiredTokens(ctx)
			if err != nil {
				slog.Warn("refresh token cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired refresh tokens removed", "count", removed)
			}
		}
	}
}
