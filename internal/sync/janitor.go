package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// Janitor periodically sweeps runs stuck in status running past a timeout
// and flips them to error. A crashed process otherwise leaves its run
// running forever and the record would read as an eternal in-flight sync.
type Janitor struct {
	runs     domain.SyncRunStore
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a Janitor sweeping at the given interval.
func NewJanitor(runs domain.SyncRunStore, timeout, interval time.Duration, logger *slog.Logger) *Janitor {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{runs: runs, timeout: timeout, interval: interval, logger: logger}
}

// Run blocks sweeping until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep marks runs started before now-timeout and still running as failed.
func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.timeout)
	n, err := j.runs.MarkStale(ctx, cutoff, "sync timed out")
	if err != nil {
		j.logger.WarnContext(ctx, "stale run sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "swept stale sync runs", slog.Int64("count", n))
	}
}
