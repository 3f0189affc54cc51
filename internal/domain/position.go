package domain

import (
	"encoding/json"
	"time"
)

// Position is one open position in the mirror. The full set of rows for
// (UserID, Provider) after a sync exactly equals the provider's reported
// open positions at that instant: reconciliation is delete-all then
// insert-all, so a position closed upstream disappears automatically.
//
// Nullable numeric fields stay nil when the provider does not report them
// or the reported value is unparseable; downstream valuation treats nil
// as "unknown", never as zero.
type Position struct {
	UserID        string
	Provider      Provider
	TokenID       string
	MarketID      string
	Question      string
	Outcome       string
	Shares        float64
	AvgPrice      *float64
	CurrentPrice  *float64
	Value         *float64
	RealizedPnL   *float64
	UnrealizedPnL *float64
	Raw           json.RawMessage
	SyncedAt      time.Time
}

// PositionSnapshot is the append-only copy of a Position captured for one
// sync run.
type PositionSnapshot struct {
	RunID        string
	UserID       string
	Provider     Provider
	TokenID      string
	Shares       float64
	CurrentPrice *float64
	Value        *float64
	CreatedAt    time.Time
}
