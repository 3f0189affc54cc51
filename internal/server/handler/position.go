package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// PositionReader defines the mirror reads the position handler requires.
type PositionReader interface {
	GetPositions(ctx context.Context, userID string, provider domain.Provider) ([]domain.Position, error)
	GetBalances(ctx context.Context, userID string, provider domain.Provider) ([]domain.Balance, error)
}

// PositionHandler serves mirrored position endpoints.
type PositionHandler struct {
	mirror PositionReader
	logger *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given reader and logger.
func NewPositionHandler(mirror PositionReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		mirror: mirror,
		logger: logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns the mirrored open positions for a user.
// GET /api/positions?user_id=...&provider=polymarket
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}
	provider, err := domain.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	positions, err := h.mirror.GetPositions(r.Context(), userID, provider)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// listBalancesResponse wraps the list balances response.
type listBalancesResponse struct {
	Balances []domain.Balance `json:"balances"`
}

// ListBalances returns the mirrored balances for a user.
// GET /api/balances?user_id=...&provider=kalshi
func (h *PositionHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}
	provider, err := domain.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balances, err := h.mirror.GetBalances(r.Context(), userID, provider)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list balances failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list balances")
		return
	}

	if balances == nil {
		balances = []domain.Balance{}
	}

	writeJSON(w, http.StatusOK, listBalancesResponse{Balances: balances})
}
