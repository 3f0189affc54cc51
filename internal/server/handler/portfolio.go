package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// PortfolioService reconstructs the portfolio view.
type PortfolioService interface {
	GetPortfolio(ctx context.Context, userID string, preferred domain.Provider) (domain.PortfolioSummary, error)
}

// SnapshotReader lists the append-only per-run portfolio totals.
type SnapshotReader interface {
	ListPortfolioSnapshots(ctx context.Context, userID string, provider domain.Provider, opts domain.ListOpts) ([]domain.PortfolioSnapshot, error)
}

// PortfolioHandler serves the portfolio valuation endpoints.
type PortfolioHandler struct {
	svc        PortfolioService
	snaps      SnapshotReader
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler. staleAfter controls the
// stale flag on responses.
func NewPortfolioHandler(svc PortfolioService, snaps SnapshotReader, staleAfter time.Duration, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{svc: svc, snaps: snaps, staleAfter: staleAfter, logger: logger}
}

// portfolioResponse wraps the summary with a staleness flag. The server
// reports stale data; it never blocks the read on a live sync.
type portfolioResponse struct {
	domain.PortfolioSummary
	Stale bool `json:"stale"`
}

// GetPortfolio returns the reconstructed portfolio for a user.
// GET /api/portfolio?user_id=...&provider=auto
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}
	preferred, err := domain.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.svc.GetPortfolio(r.Context(), userID, preferred)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get portfolio failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}

	stale := summary.LastSyncedAt == nil ||
		time.Since(*summary.LastSyncedAt) > h.staleAfter

	writeJSON(w, http.StatusOK, portfolioResponse{
		PortfolioSummary: summary,
		Stale:            stale,
	})
}

// GetHistory returns the recorded per-sync portfolio totals, newest
// first. Unlike the reconstructed performance series these are values
// actually observed at sync time.
// GET /api/portfolio/history?user_id=...&provider=polymarket&limit=100
func (h *PortfolioHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}
	provider, err := domain.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil || provider == domain.ProviderNone {
		writeError(w, http.StatusBadRequest, "provider must be polymarket or kalshi")
		return
	}

	snaps, err := h.snaps.ListPortfolioSnapshots(r.Context(), userID, provider, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list portfolio history failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load portfolio history")
		return
	}

	out := make([]map[string]any, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, map[string]any{
			"run_id":          snap.RunID,
			"provider":        string(snap.Provider),
			"cash_balance":    snap.CashBalance,
			"positions_value": snap.PositionsValue,
			"total_value":     snap.TotalValue,
			"created_at":      snap.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}
