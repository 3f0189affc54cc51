package domain

import "time"

// MarketInfo is the normalized metadata for one instrument, resolved from
// the provider's market endpoints during a sync. A nil *MarketInfo in a
// resolver result means "metadata unavailable", not an error.
type MarketInfo struct {
	ID            string   // condition id (Polymarket) or event ticker (Kalshi)
	Question      string
	Outcomes      []string // e.g. ["Yes", "No"]
	OutcomePrices []float64
	TokenIDs      []string
	BestBid       *float64
	BestAsk       *float64
	Closed        bool
}

// MidPrice returns the mid of best bid/ask when both are known, falling
// back to the first outcome price. Returns nil when no price is known.
func (m *MarketInfo) MidPrice() *float64 {
	if m == nil {
		return nil
	}
	if m.BestBid != nil && m.BestAsk != nil {
		mid := (*m.BestBid + *m.BestAsk) / 2
		return &mid
	}
	if len(m.OutcomePrices) > 0 {
		p := m.OutcomePrices[0]
		return &p
	}
	return nil
}

// PricePoint is one sample of a historical price series.
type PricePoint struct {
	Time  time.Time
	Price float64
}
