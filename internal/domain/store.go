package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SyncRunStore persists the sync_runs audit table.
type SyncRunStore interface {
	// StartRun durably records a run with status running. It must return
	// before any external call is made so a crash mid-sync is diagnosable.
	StartRun(ctx context.Context, run SyncRun) error
	// FinishRun applies the single terminal mutation of a run. It only
	// touches rows still in status running.
	FinishRun(ctx context.Context, id string, status SyncStatus, errMsg *string, meta map[string]any) error
	GetRun(ctx context.Context, id string) (SyncRun, error)
	LatestRun(ctx context.Context, userID string, provider Provider) (SyncRun, error)
	ListRuns(ctx context.Context, userID string, opts ListOpts) ([]SyncRun, error)
	// MarkStale flips runs stuck in running since before cutoff to error
	// and returns how many were swept.
	MarkStale(ctx context.Context, cutoff time.Time, errMsg string) (int64, error)
}

// MirrorStore is the persistence boundary for current-state tables.
//
// ReplacePositions and ReplaceOrders perform delete-all-for-key then
// insert-all within one transaction. This is the core correctness
// primitive: readers only ever see the previous complete mirror or the
// new complete mirror, and entities closed upstream disappear. Callers
// must never per-row upsert these tables.
type MirrorStore interface {
	ReplacePositions(ctx context.Context, userID string, provider Provider, positions []Position) error
	ReplaceOrders(ctx context.Context, userID string, provider Provider, orders []Order) error
	UpsertBalances(ctx context.Context, balances []Balance) error

	GetBalances(ctx context.Context, userID string, provider Provider) ([]Balance, error)
	GetPositions(ctx context.Context, userID string, provider Provider) ([]Position, error)
	GetOrders(ctx context.Context, userID string, provider Provider) ([]Order, error)
}

// SnapshotStore persists the append-only snapshot tables. Appends are
// insert-only; duplicate inserts under a retried run id are tolerated.
type SnapshotStore interface {
	AppendBalanceSnapshots(ctx context.Context, snaps []BalanceSnapshot) error
	AppendPositionSnapshots(ctx context.Context, snaps []PositionSnapshot) error
	AppendPortfolioSnapshot(ctx context.Context, snap PortfolioSnapshot) error
	ListPortfolioSnapshots(ctx context.Context, userID string, provider Provider, opts ListOpts) ([]PortfolioSnapshot, error)
}

// ActionStore persists the append-only trading action log.
type ActionStore interface {
	Append(ctx context.Context, action TradingAction) error
	ListRecent(ctx context.Context, userID string, provider Provider, limit int) ([]TradingAction, error)
}
