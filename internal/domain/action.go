package domain

import (
	"encoding/json"
	"time"
)

// ActionType distinguishes trading action audit records.
type ActionType string

const (
	ActionPlaceOrder  ActionType = "place_order"
	ActionCancelOrder ActionType = "cancel_order"
)

// TradingAction is an append-only audit record of an order placement or
// cancellation: the request as sent and the response as received.
type TradingAction struct {
	ID        string
	UserID    string
	Provider  Provider
	Type      ActionType
	Request   json.RawMessage
	Response  json.RawMessage
	CreatedAt time.Time
}
