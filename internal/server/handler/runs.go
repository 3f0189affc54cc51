package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// RunReader defines the sync-run reads the run handler requires.
type RunReader interface {
	GetRun(ctx context.Context, id string) (domain.SyncRun, error)
	ListRuns(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.SyncRun, error)
}

// RunHandler serves the sync run audit endpoints.
type RunHandler struct {
	runs   RunReader
	logger *slog.Logger
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(runs RunReader, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, logger: logger}
}

// ListRuns returns recent sync runs for a user, newest first.
// GET /api/runs?user_id=...&limit=50&offset=0
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	runs, err := h.runs.ListRuns(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list runs failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// GetRun returns one sync run by id.
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get run failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	writeJSON(w, http.StatusOK, runResponse(run))
}

// runResponse shapes a SyncRun for JSON output.
func runResponse(run domain.SyncRun) map[string]any {
	out := map[string]any{
		"id":         run.ID,
		"user_id":    run.UserID,
		"provider":   string(run.Provider),
		"status":     string(run.Status),
		"started_at": run.StartedAt.Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		out["finished_at"] = run.FinishedAt.Format(time.RFC3339)
	}
	if run.Error != nil {
		out["error"] = *run.Error
	}
	if len(run.Meta) > 0 {
		out["meta"] = run.Meta
	}
	return out
}
