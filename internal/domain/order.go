package domain

import (
	"encoding/json"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order is one resting (unfilled) order in the mirror. Same
// delete-then-insert replace semantics as Position: an order missing from
// the latest provider response is implicitly no longer resting.
type Order struct {
	UserID     string
	Provider   Provider
	OrderID    string
	TokenID    string
	MarketID   string
	Side       OrderSide
	Price      *float64
	Size       *float64
	FilledSize *float64
	Status     string
	CreatedAt  *time.Time
	LastSeenAt time.Time
	Raw        json.RawMessage
}

// OrderRequest describes an order placement passed through to a provider.
// The mirror core does no risk management on it; it only signs, forwards,
// and records the exchange as a TradingAction.
type OrderRequest struct {
	Provider Provider
	TokenID  string  // Polymarket ERC-1155 token id, or Kalshi ticker
	Side     OrderSide
	Outcome  string  // "yes" or "no" (Kalshi only)
	Price    float64 // limit price in dollars (0..1)
	Size     float64 // shares / contracts
}

// OrderResult is the provider's response to a placement request.
type OrderResult struct {
	Success bool
	OrderID string
	Status  string
	Message string
}
