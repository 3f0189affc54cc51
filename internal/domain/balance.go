package domain

import (
	"encoding/json"
	"time"
)

// Balance is the provider's authoritative balance for one asset as of the
// most recent successful sync. Current-state rows are fully overwritten
// (upsert by key) every sync, never partially patched.
type Balance struct {
	UserID   string
	Provider Provider
	AssetID  string
	Symbol   string
	Amount   float64
	Raw      json.RawMessage
	SyncedAt time.Time
}

// BalanceSnapshot is the append-only copy of a Balance captured for one
// sync run.
type BalanceSnapshot struct {
	RunID     string
	UserID    string
	Provider  Provider
	AssetID   string
	Amount    float64
	CreatedAt time.Time
}
