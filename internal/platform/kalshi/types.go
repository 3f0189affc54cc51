package kalshi

import "github.com/tummybutters/marketmirror/internal/domain"

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiMarket represents a market as returned by the Kalshi REST API.
// Prices are in cents (1-99).
type KalshiMarket struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Status         string  `json:"status"` // "open", "closed", "settled"
	YesBid         float64 `json:"yes_bid"`
	YesAsk         float64 `json:"yes_ask"`
	NoBid          float64 `json:"no_bid"`
	NoAsk          float64 `json:"no_ask"`
	LastPrice      float64 `json:"last_price"`
	Volume         int64   `json:"volume"`
	OpenInterest   int64   `json:"open_interest"`
	ExpirationTime string  `json:"expiration_time"`
	Result         string  `json:"result"` // "yes", "no", "" (unsettled)
	CloseTime      string  `json:"close_time"`
}

// KalshiBalance is the response of the portfolio balance endpoint. The
// balance is the USD cash amount in cents.
type KalshiBalance struct {
	Balance int64 `json:"balance"`
}

// KalshiPosition is one entry of the paginated market positions endpoint.
// Position is a signed contract count (positive = yes, negative = no);
// monetary fields are in cents.
type KalshiPosition struct {
	Ticker         string `json:"ticker"`
	Position       int64  `json:"position"`
	MarketExposure int64  `json:"market_exposure"`
	RealizedPnL    int64  `json:"realized_pnl"`
	TotalTraded    int64  `json:"total_traded"`
	RestingOrders  int64  `json:"resting_orders_count"`
	FeesPaid       int64  `json:"fees_paid"`
}

// PositionsPage is one page of the positions endpoint. An empty cursor
// means there are no further pages.
type PositionsPage struct {
	Positions []KalshiPosition `json:"market_positions"`
	Cursor    string           `json:"cursor"`
}

// KalshiRestingOrder is one entry of the paginated orders endpoint.
type KalshiRestingOrder struct {
	OrderID        string `json:"order_id"`
	Ticker         string `json:"ticker"`
	Action         string `json:"action"` // "buy" or "sell"
	Side           string `json:"side"`   // "yes" or "no"
	Type           string `json:"type"`   // "market" or "limit"
	Status         string `json:"status"`
	YesPrice       int64  `json:"yes_price"` // cents
	NoPrice        int64  `json:"no_price"`  // cents
	RemainingCount int64  `json:"remaining_count"`
	InitialCount   int64  `json:"initial_count"`
	CreatedTime    string `json:"created_time"` // RFC3339
}

// OrdersPage is one page of the orders endpoint.
type OrdersPage struct {
	Orders []KalshiRestingOrder `json:"orders"`
	Cursor string               `json:"cursor"`
}

// KalshiCandle is one candlestick of a market price-history response.
// Price fields are in cents.
type KalshiCandle struct {
	EndPeriodTS int64 `json:"end_period_ts"` // unix seconds
	Price       struct {
		Open  int64 `json:"open"`
		Close int64 `json:"close"`
	} `json:"price"`
	YesBid struct {
		Close int64 `json:"close"`
	} `json:"yes_bid"`
	YesAsk struct {
		Close int64 `json:"close"`
	} `json:"yes_ask"`
}

// KalshiOrder represents an order to be placed on the Kalshi exchange.
type KalshiOrder struct {
	Ticker   string `json:"ticker"`
	Action   string `json:"action"` // "buy" or "sell"
	Side     string `json:"side"`   // "yes" or "no"
	Type     string `json:"type"`   // "market" or "limit"
	Count    int64  `json:"count"`  // number of contracts
	YesPrice *int64 `json:"yes_price,omitempty"` // limit price in cents (1-99)
	NoPrice  *int64 `json:"no_price,omitempty"`  // limit price in cents (1-99)
}

// KalshiOrderResponse represents the API response after placing an order.
type KalshiOrderResponse struct {
	Order struct {
		OrderID        string `json:"order_id"`
		Ticker         string `json:"ticker"`
		Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
		Action         string `json:"action"`
		Side           string `json:"side"`
		Type           string `json:"type"`
		YesPrice       int64  `json:"yes_price"`
		NoPrice        int64  `json:"no_price"`
		PlacedTime     string `json:"placed_time"`
		RemainingCount int64  `json:"remaining_count"`
	} `json:"order"`
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

// ToMarketInfo converts a KalshiMarket to normalized market metadata.
// Cent prices become dollar prices; the No price is the Yes complement.
func (m *KalshiMarket) ToMarketInfo() *domain.MarketInfo {
	info := &domain.MarketInfo{
		ID:       m.EventTicker,
		Question: m.Title,
		Outcomes: []string{"Yes", "No"},
		TokenIDs: []string{m.Ticker},
		Closed:   m.Status != "open",
	}

	if m.YesBid > 0 {
		bid := m.YesBid / 100
		info.BestBid = &bid
	}
	if m.YesAsk > 0 {
		ask := m.YesAsk / 100
		info.BestAsk = &ask
	}

	if yes := info.MidPrice(); yes != nil {
		info.OutcomePrices = []float64{*yes, 1 - *yes}
	} else if m.LastPrice > 0 {
		last := m.LastPrice / 100
		info.OutcomePrices = []float64{last, 1 - last}
	}

	return info
}
