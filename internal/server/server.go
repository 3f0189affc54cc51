// Package server exposes the mirror over HTTP: sync triggers, portfolio
// and mirror reads, the trading pass-through, and credential management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
	"github.com/tummybutters/marketmirror/internal/server/handler"
	"github.com/tummybutters/marketmirror/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Sync        *handler.SyncHandler
	Portfolio   *handler.PortfolioHandler
	Positions   *handler.PositionHandler
	Orders      *handler.OrderHandler
	Runs        *handler.RunHandler
	Payloads    *handler.PayloadHandler
	Actions     *handler.ActionHandler
	Credentials *handler.CredentialHandler
}

// Server is the headless HTTP API server for the mirror service.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the
// ServeMux and the middleware chain (logging, CORS, auth, rate limit)
// applied. limiter may be nil to disable per-client request limiting.
func NewServer(cfg Config, handlers Handlers, limiter domain.SyncLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Sync trigger.
	mux.HandleFunc("POST /api/sync", handlers.Sync.TriggerSync)

	// Portfolio and mirror reads.
	mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.GetPortfolio)
	mux.HandleFunc("GET /api/portfolio/history", handlers.Portfolio.GetHistory)
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/balances", handlers.Positions.ListBalances)

	// Order endpoints: mirrored reads plus the trading pass-through.
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("POST /api/orders", handlers.Orders.PlaceOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Orders.CancelOrder)

	// Sync run audit and archived raw payloads.
	mux.HandleFunc("GET /api/runs", handlers.Runs.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", handlers.Runs.GetRun)
	mux.HandleFunc("GET /api/runs/{id}/payloads", handlers.Payloads.ListPayloads)
	mux.HandleFunc("GET /api/runs/{id}/payloads/{name}", handlers.Payloads.GetPayload)

	// Trading action audit.
	mux.HandleFunc("GET /api/actions", handlers.Actions.ListActions)

	// Provider connect / disconnect.
	mux.HandleFunc("PUT /api/credentials/polymarket", handlers.Credentials.ConnectPolymarket)
	mux.HandleFunc("PUT /api/credentials/kalshi", handlers.Credentials.ConnectKalshi)
	mux.HandleFunc("DELETE /api/credentials/{provider}", handlers.Credentials.Disconnect)

	// Build the middleware chain.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, 30, time.Second)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
