package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// SyncService triggers a guarded sync for a user.
type SyncService interface {
	SyncNow(ctx context.Context, userID string, preferred domain.Provider) (domain.SyncResult, error)
}

// SyncHandler serves the manual sync trigger.
type SyncHandler struct {
	svc    SyncService
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(svc SyncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{svc: svc, logger: logger}
}

// syncRequest is the JSON body for a sync trigger. Provider is optional;
// empty or "auto" syncs whichever provider the user has connected.
type syncRequest struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider,omitempty"`
}

// TriggerSync runs a sync and returns the structured result. The result
// carries the run record or the captured failure; provider errors never
// surface as HTTP 5xx.
// POST /api/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var body syncRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	preferred, err := domain.ParseProvider(body.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.SyncNow(r.Context(), body.UserID, preferred)
	if err != nil {
		if errors.Is(err, domain.ErrSyncThrottled) {
			writeError(w, http.StatusTooManyRequests, "sync rate limit exceeded")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: sync failed",
			slog.String("user_id", body.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, syncResultResponse(result))
}

// syncResultResponse shapes a SyncResult for JSON output.
func syncResultResponse(res domain.SyncResult) map[string]any {
	out := map[string]any{
		"provider": string(res.Provider),
	}
	if res.Error != "" {
		out["error"] = res.Error
	}
	if res.Run != nil {
		out["run"] = runResponse(*res.Run)
	}
	return out
}
