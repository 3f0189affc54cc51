package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// multipartThreshold is the payload size above which archives switch to
// multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// PayloadArchiver implements domain.PayloadArchiver: it retains each sync
// run's raw provider responses in object storage for debugging. Keys are
// laid out as raw/<date>/<run_id>/<name>.json.
type PayloadArchiver struct {
	writer domain.BlobWriter
	logger *slog.Logger
}

// NewPayloadArchiver creates a PayloadArchiver over the given writer.
func NewPayloadArchiver(writer domain.BlobWriter, logger *slog.Logger) *PayloadArchiver {
	return &PayloadArchiver{writer: writer, logger: logger}
}

// ArchivePayload stores one raw payload for a run. Errors are returned for
// the caller to log; archival must never fail a sync.
func (a *PayloadArchiver) ArchivePayload(ctx context.Context, runID string, name string, payload []byte) error {
	key := fmt.Sprintf("raw/%s/%s/%s.json", time.Now().UTC().Format("2006-01-02"), runID, name)

	var err error
	if len(payload) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(payload), int64(len(payload)))
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(payload), "application/json")
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive payload %s: %w", key, err)
	}

	a.logger.DebugContext(ctx, "archived raw payload",
		slog.String("run_id", runID),
		slog.String("key", key),
		slog.Int("bytes", len(payload)),
	)
	return nil
}

// Compile-time interface check.
var _ domain.PayloadArchiver = (*PayloadArchiver)(nil)
