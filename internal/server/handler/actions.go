package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// ActionReader lists recorded trading actions.
type ActionReader interface {
	ListRecent(ctx context.Context, userID string, provider domain.Provider, limit int) ([]domain.TradingAction, error)
}

// ActionHandler serves the trading action audit log.
type ActionHandler struct {
	actions ActionReader
	logger  *slog.Logger
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(actions ActionReader, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{actions: actions, logger: logger}
}

// ListActions returns recent trading actions for a user, newest first.
// GET /api/actions?user_id=...&provider=kalshi&limit=20
func (h *ActionHandler) ListActions(w http.ResponseWriter, r *http.Request) {
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

	actions, err := h.actions.ListRecent(r.Context(), userID, provider, parseListOpts(r).Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list actions failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}

	if actions == nil {
		actions = []domain.TradingAction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}
