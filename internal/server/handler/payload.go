package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// PayloadHandler serves the raw provider payloads retained in object
// storage per sync run.
type PayloadHandler struct {
	runs   RunReader
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewPayloadHandler creates a PayloadHandler. blobs may be nil when object
// storage is disabled; the endpoints then report the archive as
// unavailable.
func NewPayloadHandler(runs RunReader, blobs domain.BlobReader, logger *slog.Logger) *PayloadHandler {
	return &PayloadHandler{runs: runs, blobs: blobs, logger: logger}
}

// archiveDates returns the UTC dates a run's payload keys can fall under.
// Payloads are keyed by archive time, so a run crossing midnight spans two
// dates.
func archiveDates(run domain.SyncRun) []string {
	dates := []string{run.StartedAt.UTC().Format("2006-01-02")}
	if run.FinishedAt != nil {
		if d := run.FinishedAt.UTC().Format("2006-01-02"); d != dates[0] {
			dates = append(dates, d)
		}
	}
	return dates
}

// ListPayloads lists the archived raw payloads of one sync run.
// GET /api/runs/{id}/payloads
func (h *PayloadHandler) ListPayloads(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "payload archive not enabled")
		return
	}
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
		h.logger.ErrorContext(r.Context(), "handler: load run for payloads failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	out := make([]map[string]any, 0, 4)
	for _, date := range archiveDates(run) {
		infos, err := h.blobs.List(r.Context(), fmt.Sprintf("raw/%s/%s/", date, run.ID))
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: list payloads failed",
				slog.String("run_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to list payloads")
			return
		}
		for _, info := range infos {
			out = append(out, map[string]any{
				"name":          strings.TrimSuffix(path.Base(info.Path), ".json"),
				"path":          info.Path,
				"size":          info.Size,
				"last_modified": info.LastModified.Format(time.RFC3339),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   run.ID,
		"payloads": out,
	})
}

// GetPayload streams one archived payload.
// GET /api/runs/{id}/payloads/{name}
func (h *PayloadHandler) GetPayload(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "payload archive not enabled")
		return
	}
	id := pathParam(r, "id")
	name := pathParam(r, "name")
	if id == "" || name == "" {
		writeError(w, http.StatusBadRequest, "missing run id or payload name")
		return
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		writeError(w, http.StatusBadRequest, "invalid payload name")
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: load run for payload failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	for _, date := range archiveDates(run) {
		key := fmt.Sprintf("raw/%s/%s/%s.json", date, run.ID, name)
		body, err := h.blobs.Get(r.Context(), key)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: get payload failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to load payload")
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			h.logger.WarnContext(r.Context(), "handler: payload stream interrupted",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	writeError(w, http.StatusNotFound, "payload not found")
}
