// Package markets resolves raw instrument identifiers into normalized
// market metadata and historical price series.
package markets

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// DefaultChunkSize bounds how many instrument ids go into one upstream
// metadata call; both providers reject oversized batches.
const DefaultChunkSize = 90

// Source fetches metadata for one batch of instrument ids. Implementations
// wrap one provider's market endpoint and convert its DTOs.
type Source interface {
	MarketsByIDs(ctx context.Context, ids []string) (map[string]*domain.MarketInfo, error)
}

// Resolver batches, deduplicates, and fans out metadata lookups. Results
// are best-effort: a failed sub-batch is logged and contributes nothing,
// because positions must still mirror when enrichment partially fails.
// Nothing is cached; metadata is resolved fresh per sync run.
type Resolver struct {
	chunkSize int
	logger    *slog.Logger
}

// NewResolver creates a Resolver. chunkSize <= 0 selects DefaultChunkSize.
func NewResolver(chunkSize int, logger *slog.Logger) *Resolver {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Resolver{chunkSize: chunkSize, logger: logger}
}

// Resolve returns metadata for the given ids keyed by id. Missing entries
// mean "metadata unavailable", not an error; callers must tolerate them.
func (r *Resolver) Resolve(ctx context.Context, src Source, ids []string) map[string]*domain.MarketInfo {
	unique := dedupe(ids)
	result := make(map[string]*domain.MarketInfo, len(unique))
	if len(unique) == 0 {
		return result
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for start := 0; start < len(unique); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		g.Go(func() error {
			batch, err := src.MarketsByIDs(ctx, chunk)
			if err != nil {
				// Best-effort: swallow the sub-batch failure.
				r.logger.WarnContext(ctx, "markets: metadata sub-batch failed",
					slog.Int("batch_size", len(chunk)),
					slog.String("error", err.Error()),
				)
				return nil
			}

			mu.Lock()
			for id, info := range batch {
				result[id] = info
			}
			mu.Unlock()
			return nil
		})
	}

	// Sub-batch errors are swallowed above, so Wait only fails on context
	// cancellation; either way the partial map is what we have.
	_ = g.Wait()

	return result
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
