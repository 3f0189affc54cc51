// Package app provides the top-level application lifecycle for the mirror
// service. It wires together all dependencies (stores, caches, blob
// storage, provider clients, services) and runs the HTTP server alongside
// the background sweeper.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tummybutters/marketmirror/internal/config"
	"github.com/tummybutters/marketmirror/internal/server"
	"github.com/tummybutters/marketmirror/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the HTTP
// server and the stale-run sweeper, and blocks until the context is
// cancelled. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting mirror service",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// Stale-run sweeper.
	g.Go(func() error {
		return deps.Janitor.Run(ctx)
	})

	// HTTP server.
	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Sync:        handler.NewSyncHandler(deps.Orchestrator, a.logger),
		Portfolio:   handler.NewPortfolioHandler(deps.Reconstructor, deps.SnapshotStore, a.cfg.Server.StaleAfter.Duration, a.logger),
		Positions:   handler.NewPositionHandler(deps.MirrorStore, a.logger),
		Orders:      handler.NewOrderHandler(deps.MirrorStore, deps.Trader, a.logger),
		Runs:        handler.NewRunHandler(deps.RunStore, a.logger),
		Payloads:    handler.NewPayloadHandler(deps.RunStore, deps.BlobReader, a.logger),
		Actions:     handler.NewActionHandler(deps.ActionStore, a.logger),
		Credentials: handler.NewCredentialHandler(deps.Credentials, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, deps.SyncLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
