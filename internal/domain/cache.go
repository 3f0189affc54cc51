package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking. The sync orchestrator takes a
// per-(user, provider) lease before syncing so two concurrent "sync now"
// triggers for the same account cannot race on reconciliation.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SyncLimiter throttles sync attempts per (user, provider). It replaces
// in-process rate-limit maps with shared state so multi-instance
// deployments behave correctly.
type SyncLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
