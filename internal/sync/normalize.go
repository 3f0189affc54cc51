package sync

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
	"github.com/tummybutters/marketmirror/internal/platform/kalshi"
	"github.com/tummybutters/marketmirror/internal/platform/polymarket"
)

// normalized is the provider-neutral result of one fetch cycle, ready for
// reconciliation.
type normalized struct {
	Cash      float64
	Balances  []domain.Balance
	Positions []domain.Position
	Orders    []domain.Order
}

func rawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// normalizePolymarket maps data-API balances and CLOB orders into domain
// rows. A conditional-token balance with a positive amount is an open
// position; the USDC balance is cash. Metadata misses leave the position
// with its identifiers only, prices nil.
func normalizePolymarket(userID string, balances []polymarket.APIBalance, orders []polymarket.APIOpenOrder, meta map[string]*domain.MarketInfo, now time.Time) normalized {
	var n normalized

	for i := range balances {
		b := &balances[i]
		amount := b.Amount()
		if amount == nil {
			continue
		}

		n.Balances = append(n.Balances, domain.Balance{
			UserID:   userID,
			Provider: domain.ProviderPolymarket,
			AssetID:  b.AssetID,
			Symbol:   b.Symbol,
			Amount:   *amount,
			Raw:      rawJSON(b),
			SyncedAt: now,
		})

		if strings.EqualFold(b.Symbol, "USDC") {
			n.Cash += *amount
			continue
		}
		if *amount <= 0 {
			continue
		}

		pos := domain.Position{
			UserID:   userID,
			Provider: domain.ProviderPolymarket,
			TokenID:  b.AssetID,
			Shares:   *amount,
			Raw:      rawJSON(b),
			SyncedAt: now,
		}
		if m := meta[b.AssetID]; m != nil {
			pos.MarketID = m.ID
			pos.Question = m.Question
			idx := tokenIndex(m, b.AssetID)
			if idx >= 0 && idx < len(m.Outcomes) {
				pos.Outcome = m.Outcomes[idx]
			}
			if idx >= 0 && idx < len(m.OutcomePrices) {
				p := m.OutcomePrices[idx]
				pos.CurrentPrice = &p
			} else {
				pos.CurrentPrice = m.MidPrice()
			}
			if pos.CurrentPrice != nil {
				v := *pos.CurrentPrice * pos.Shares
				pos.Value = &v
			}
		}
		n.Positions = append(n.Positions, pos)
	}

	for i := range orders {
		o := &orders[i]
		side := domain.OrderSideBuy
		if strings.EqualFold(o.Side, "SELL") {
			side = domain.OrderSideSell
		}
		row := domain.Order{
			UserID:     userID,
			Provider:   domain.ProviderPolymarket,
			OrderID:    o.ID,
			TokenID:    o.AssetID,
			MarketID:   o.MarketID,
			Side:       side,
			Price:      polymarket.ParseFloat(o.Price),
			Size:       polymarket.ParseFloat(o.OriginalSize),
			FilledSize: polymarket.ParseFloat(o.SizeMatched),
			Status:     o.Status,
			LastSeenAt: now,
			Raw:        rawJSON(o),
		}
		if o.CreatedAt > 0 {
			t := time.Unix(o.CreatedAt, 0).UTC()
			row.CreatedAt = &t
		}
		n.Orders = append(n.Orders, row)
	}

	return n
}

// normalizeKalshi maps the portfolio balance, paginated positions, and
// resting orders into domain rows. All Kalshi monetary fields arrive in
// cents; everything stored is dollars. A positive contract count is a yes
// position, negative is no.
func normalizeKalshi(userID string, bal kalshi.KalshiBalance, positions []kalshi.KalshiPosition, orders []kalshi.KalshiRestingOrder, meta map[string]*domain.MarketInfo, now time.Time) normalized {
	var n normalized

	n.Cash = float64(bal.Balance) / 100
	n.Balances = append(n.Balances, domain.Balance{
		UserID:   userID,
		Provider: domain.ProviderKalshi,
		AssetID:  "usd",
		Symbol:   "USD",
		Amount:   n.Cash,
		Raw:      rawJSON(bal),
		SyncedAt: now,
	})

	for i := range positions {
		p := &positions[i]
		if p.Position == 0 {
			continue
		}
		shares := math.Abs(float64(p.Position))
		outcome := "Yes"
		if p.Position < 0 {
			outcome = "No"
		}

		pos := domain.Position{
			UserID:   userID,
			Provider: domain.ProviderKalshi,
			TokenID:  p.Ticker,
			MarketID: p.Ticker,
			Outcome:  outcome,
			Shares:   shares,
			Raw:      rawJSON(p),
			SyncedAt: now,
		}
		if avg := float64(p.MarketExposure) / 100 / shares; avg > 0 {
			pos.AvgPrice = &avg
		}
		realized := float64(p.RealizedPnL) / 100
		pos.RealizedPnL = &realized

		if m := meta[p.Ticker]; m != nil {
			pos.Question = m.Question
			if yes := m.MidPrice(); yes != nil {
				price := *yes
				if p.Position < 0 {
					price = 1 - price
				}
				pos.CurrentPrice = &price
				v := price * shares
				pos.Value = &v
			}
		}
		n.Positions = append(n.Positions, pos)
	}

	for i := range orders {
		o := &orders[i]
		side := domain.OrderSideBuy
		if strings.EqualFold(o.Action, "sell") {
			side = domain.OrderSideSell
		}
		cents := o.YesPrice
		if strings.EqualFold(o.Side, "no") {
			cents = o.NoPrice
		}
		price := float64(cents) / 100
		size := float64(o.InitialCount)
		filled := float64(o.InitialCount - o.RemainingCount)

		row := domain.Order{
			UserID:     userID,
			Provider:   domain.ProviderKalshi,
			OrderID:    o.OrderID,
			TokenID:    o.Ticker,
			MarketID:   o.Ticker,
			Side:       side,
			Price:      &price,
			Size:       &size,
			FilledSize: &filled,
			Status:     o.Status,
			LastSeenAt: now,
			Raw:        rawJSON(o),
		}
		if t, err := time.Parse(time.RFC3339, o.CreatedTime); err == nil {
			t = t.UTC()
			row.CreatedAt = &t
		}
		n.Orders = append(n.Orders, row)
	}

	return n
}

// tokenIndex returns the position of tokenID within the market's token
// list, or -1.
func tokenIndex(m *domain.MarketInfo, tokenID string) int {
	for i, id := range m.TokenIDs {
		if id == tokenID {
			return i
		}
	}
	return -1
}

// positionsValue sums the known position values. Positions with nil value
// contribute nothing.
func positionsValue(positions []domain.Position) float64 {
	var total float64
	for i := range positions {
		if positions[i].Value != nil {
			total += *positions[i].Value
		}
	}
	return total
}
