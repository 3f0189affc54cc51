package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// ParseFloat coerces a provider numeric string to *float64, returning nil
// when the field is absent or unparseable. Provider payloads are loosely
// typed; a bad numeric must degrade to "unknown", never to a panic or a
// silent zero.
func ParseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseStringArray decodes a JSON-encoded string array field such as
// Gamma's "outcomes". Returns nil on malformed input.
func parseStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APIBalance is one asset balance as returned by the data API. For
// Polymarket, a conditional-token balance IS an open position; there is no
// separate positions endpoint.
type APIBalance struct {
	AssetID  string `json:"asset"`
	Symbol   string `json:"symbol"`
	Balance  string `json:"balance"`
	Decimals int    `json:"decimals"`
}

// Amount returns the balance scaled by the reported decimals, or nil when
// the raw balance is unparseable.
func (b *APIBalance) Amount() *float64 {
	v := ParseFloat(b.Balance)
	if v == nil {
		return nil
	}
	amount := *v
	for i := 0; i < b.Decimals; i++ {
		amount /= 10
	}
	return &amount
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOpenOrder represents a resting order as returned by the CLOB API.
type APIOpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	MarketID     string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"` // "BUY" or "SELL"
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	CreatedAt    int64  `json:"created_at"` // unix seconds
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	TransactID  string `json:"transactID,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// APIPricePoint is one sample in a CLOB prices-history response.
type APIPricePoint struct {
	T int64   `json:"t"` // unix seconds
	P float64 `json:"p"`
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Several array fields arrive as JSON-encoded strings.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	ConditionID   string   `json:"condition_id"`
	Slug          string   `json:"slug"`
	Active        flexBool `json:"active"` // API may send bool or "true"/"false" string
	Closed        bool     `json:"closed"`
	Outcomes      string   `json:"outcomes"`       // e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string   `json:"outcomePrices"`  // e.g. "[\"0.6\",\"0.4\"]"
	ClobTokenIDs  string   `json:"clob_token_ids"` // e.g. "[\"123\",\"456\"]"
	BestBid       string   `json:"best_bid"`
	BestAsk       string   `json:"best_ask"`
}

// Prices returns the outcome prices, or nil when the field is absent or
// malformed.
func (m *APIMarket) Prices() []float64 {
	raw := parseStringArray(m.OutcomePrices)
	if raw == nil {
		// Some responses send a plain float array.
		var direct []float64
		if err := json.Unmarshal([]byte(m.OutcomePrices), &direct); err == nil {
			return direct
		}
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		if p := ParseFloat(s); p != nil {
			out = append(out, *p)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// OutcomeLabels returns the decoded outcome names.
func (m *APIMarket) OutcomeLabels() []string {
	return parseStringArray(m.Outcomes)
}

// TokenIDs returns the decoded CLOB token ids.
func (m *APIMarket) TokenIDs() []string {
	return parseStringArray(m.ClobTokenIDs)
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

// ToMarketInfo converts a Gamma APIMarket to normalized market metadata.
func (m *APIMarket) ToMarketInfo() *domain.MarketInfo {
	return &domain.MarketInfo{
		ID:            m.ConditionID,
		Question:      m.Question,
		Outcomes:      m.OutcomeLabels(),
		OutcomePrices: m.Prices(),
		TokenIDs:      m.TokenIDs(),
		BestBid:       ParseFloat(m.BestBid),
		BestAsk:       ParseFloat(m.BestAsk),
		Closed:        m.Closed,
	}
}
