package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tummybutters/marketmirror/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// SyncLimiter implements domain.SyncLimiter using a sliding-window
// approach backed by Redis sorted sets and an atomic Lua script. Keys are
// per (user, provider), so throttle state is shared across instances
// instead of living in process-wide maps.
type SyncLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script
}

// NewSyncLimiter creates a SyncLimiter backed by the given Client.
func NewSyncLimiter(c *Client) *SyncLimiter {
	return &SyncLimiter{
		rdb:           c.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowLua),
	}
}

func limiterKey(key string) string {
	return "syncrate:" + key
}

// Allow checks whether a sync for the given key is permitted under the
// sliding window limit. It returns true if the attempt is allowed (and
// counted), or false if the limit has been reached.
func (sl *SyncLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMicro()
	windowMicro := window.Microseconds()

	result, err := sl.slidingWindow.Run(
		ctx,
		sl.rdb,
		[]string{limiterKey(key)},
		now,
		windowMicro,
		limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: sync limiter allow %s: %w", key, err)
	}

	if len(result) < 2 {
		return false, fmt.Errorf("redis: sync limiter allow %s: unexpected result length %d", key, len(result))
	}

	return result[0] == 1, nil
}

// Compile-time interface check.
var _ domain.SyncLimiter = (*SyncLimiter)(nil)
