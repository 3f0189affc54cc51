package markets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/tummybutters/marketmirror/internal/domain"
)

type recordingSource struct {
	mu      sync.Mutex
	batches [][]string
	markets map[string]*domain.MarketInfo
	failIDs map[string]bool
}

func (s *recordingSource) MarketsByIDs(ctx context.Context, ids []string) (map[string]*domain.MarketInfo, error) {
	s.mu.Lock()
	s.batches = append(s.batches, ids)
	s.mu.Unlock()

	for _, id := range ids {
		if s.failIDs[id] {
			return nil, errors.New("upstream rejected batch")
		}
	}
	out := make(map[string]*domain.MarketInfo)
	for _, id := range ids {
		if m, ok := s.markets[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveDedupesAndSkipsEmpty(t *testing.T) {
	src := &recordingSource{markets: map[string]*domain.MarketInfo{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}
	r := NewResolver(0, discardLogger())

	got := r.Resolve(context.Background(), src, []string{"a", "", "b", "a", "b"})

	if len(got) != 2 {
		t.Fatalf("resolved = %d, want 2", len(got))
	}
	if len(src.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(src.batches))
	}
	if len(src.batches[0]) != 2 {
		t.Errorf("batch ids = %v, want deduped pair", src.batches[0])
	}
}

func TestResolveChunks(t *testing.T) {
	markets := make(map[string]*domain.MarketInfo)
	var ids []string
	for i := 0; i < 7; i++ {
		id := string(rune('a' + i))
		ids = append(ids, id)
		markets[id] = &domain.MarketInfo{ID: id}
	}
	src := &recordingSource{markets: markets}
	r := NewResolver(3, discardLogger())

	got := r.Resolve(context.Background(), src, ids)

	if len(got) != 7 {
		t.Errorf("resolved = %d, want 7", len(got))
	}
	if len(src.batches) != 3 {
		t.Errorf("batches = %d, want 3 chunks of <= 3", len(src.batches))
	}
	for _, batch := range src.batches {
		if len(batch) > 3 {
			t.Errorf("oversized batch: %v", batch)
		}
	}
}

func TestResolvePartialFailure(t *testing.T) {
	src := &recordingSource{
		markets: map[string]*domain.MarketInfo{
			"ok-1": {ID: "ok-1"},
			"ok-2": {ID: "ok-2"},
		},
		failIDs: map[string]bool{"bad": true},
	}
	r := NewResolver(2, discardLogger())

	got := r.Resolve(context.Background(), src, []string{"ok-1", "ok-2", "bad"})

	// The failing chunk contributes nothing; the healthy chunk survives.
	if len(got) != 2 {
		t.Errorf("resolved = %d, want 2", len(got))
	}
	if got["ok-1"] == nil || got["ok-2"] == nil {
		t.Errorf("resolved = %v", got)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	src := &recordingSource{}
	r := NewResolver(0, discardLogger())

	got := r.Resolve(context.Background(), src, nil)
	if len(got) != 0 {
		t.Errorf("resolved = %d, want 0", len(got))
	}
	if len(src.batches) != 0 {
		t.Errorf("batches = %d, want 0", len(src.batches))
	}
}
