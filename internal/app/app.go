package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"admin-console/internal/config"
)

func newServer(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// serve runs server until ctx is done, then shuts it down and runs the
// cleanups in order.
func serve(ctx context.Context, name string, server *http.Server, shutdownTimeout time.Duration, cleanups []func()) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "process", name, "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	for _, cleanup := range cleanups {
		cleanup()
	}

	if serveErr != nil {
		return fmt.Errorf("%s server failed: %w", name, serveErr)
	}
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped", "process", name)
	return nil
}
