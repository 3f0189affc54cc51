package domain

import "time"

// PerformancePoint is one reconstructed daily portfolio value.
type PerformancePoint struct {
	Date  time.Time
	Value float64
}

// PortfolioSummary is the read-side view of a mirrored account. The 24h
// PnL and the daily performance series are reconstructed under a
// constant-holdings assumption (current share counts held unchanged over
// the whole window) and are presentation-grade, not a trade ledger.
type PortfolioSummary struct {
	Provider       Provider
	CashBalance    float64
	PositionsValue float64
	TotalValue     float64
	PnL24h         *float64
	Positions      []Position
	Performance    []PerformancePoint
	LastSyncedAt   *time.Time
}

// PortfolioSnapshot stores the valuation captured at sync time. It is the
// only durable source for coarse performance history; a sync that never
// ran leaves a gap.
type PortfolioSnapshot struct {
	RunID          string
	UserID         string
	Provider       Provider
	CashBalance    float64
	PositionsValue float64
	TotalValue     float64
	CreatedAt      time.Time
}
