// Package valuation builds the read-side portfolio view: live totals from
// the mirror tables plus reconstructed 24h PnL and a 30-day performance
// series from provider price history.
//
// The reconstruction holds current share counts constant over the whole
// window. It is presentation-grade: deposits, trades, and closed positions
// inside the window are not modeled.
package valuation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// maxValuedPositions caps how many positions feed PnL and the performance
// series; beyond the largest holdings the history calls cost more than the
// precision they add.
const maxValuedPositions = 12

// performanceDays is the length of the reconstructed window. The series
// has performanceDays+1 daily points.
const performanceDays = 30

// PriceHistorian serves historical price samples for one instrument.
type PriceHistorian interface {
	PriceHistory(ctx context.Context, provider domain.Provider, instrumentID string, from, to time.Time, resolutionMinutes int) ([]domain.PricePoint, error)
}

// Reconstructor assembles PortfolioSummary values from the mirror and
// price history.
type Reconstructor struct {
	mirror  domain.MirrorStore
	runs    domain.SyncRunStore
	history PriceHistorian
	logger  *slog.Logger

	now func() time.Time
}

// NewReconstructor creates a Reconstructor.
func NewReconstructor(mirror domain.MirrorStore, runs domain.SyncRunStore, history PriceHistorian, logger *slog.Logger) *Reconstructor {
	return &Reconstructor{
		mirror:  mirror,
		runs:    runs,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

// GetPortfolio returns the portfolio view for the user's preferred
// provider, falling back to whichever provider has sync history. A user
// with no synced provider gets a zero summary with ProviderNone.
func (r *Reconstructor) GetPortfolio(ctx context.Context, userID string, preferred domain.Provider) (domain.PortfolioSummary, error) {
	provider, lastRun := r.pickProvider(ctx, userID, preferred)
	if provider == domain.ProviderNone {
		return domain.PortfolioSummary{Provider: domain.ProviderNone}, nil
	}

	balances, err := r.mirror.GetBalances(ctx, userID, provider)
	if err != nil {
		return domain.PortfolioSummary{}, fmt.Errorf("valuation: load balances: %w", err)
	}
	positions, err := r.mirror.GetPositions(ctx, userID, provider)
	if err != nil {
		return domain.PortfolioSummary{}, fmt.Errorf("valuation: load positions: %w", err)
	}

	cash := cashBalance(balances)
	posValue := 0.0
	for i := range positions {
		if positions[i].Value != nil {
			posValue += *positions[i].Value
		}
	}

	summary := domain.PortfolioSummary{
		Provider:       provider,
		CashBalance:    cash,
		PositionsValue: posValue,
		TotalValue:     cash + posValue,
		Positions:      positions,
	}
	if lastRun != nil && lastRun.FinishedAt != nil {
		summary.LastSyncedAt = lastRun.FinishedAt
	}

	top := topByValue(positions, maxValuedPositions)
	now := r.now().UTC()
	summary.PnL24h = r.pnl24h(ctx, provider, top, now)
	summary.Performance = r.performance(ctx, provider, top, cash, now)

	return summary, nil
}

// pickProvider returns the provider to read, preferring an explicit
// choice, otherwise the first provider with any sync history.
func (r *Reconstructor) pickProvider(ctx context.Context, userID string, preferred domain.Provider) (domain.Provider, *domain.SyncRun) {
	candidates := []domain.Provider{domain.ProviderPolymarket, domain.ProviderKalshi}
	if preferred == domain.ProviderKalshi {
		candidates = []domain.Provider{domain.ProviderKalshi, domain.ProviderPolymarket}
	}
	for _, p := range candidates {
		run, err := r.runs.LatestRun(ctx, userID, p)
		if err == nil {
			return p, &run
		}
	}
	return domain.ProviderNone, nil
}

// pnl24h reconstructs the 24-hour PnL over the top positions: for each,
// (last sample - first sample) over the window times current shares. A
// position with no usable history contributes nothing; when none
// contribute, the PnL is unknown rather than zero.
func (r *Reconstructor) pnl24h(ctx context.Context, provider domain.Provider, top []domain.Position, now time.Time) *float64 {
	var total float64
	contributed := false

	for i := range top {
		p := &top[i]
		pts, err := r.history.PriceHistory(ctx, provider, p.TokenID, now.Add(-24*time.Hour), now, 60)
		if err != nil {
			r.logger.WarnContext(ctx, "price history unavailable",
				slog.String("token_id", p.TokenID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(pts) < 2 {
			continue
		}
		delta := pts[len(pts)-1].Price - pts[0].Price
		total += delta * p.Shares * outcomeSign(provider, p.Outcome)
		contributed = true
	}

	if !contributed {
		return nil
	}
	return &total
}

// performance reconstructs daily portfolio values over the trailing
// window: one point per day boundary plus one for now. Each position is
// priced at its latest sample at or before the point's time; days before
// the first sample carry the first known price backward. Cash is held
// constant.
func (r *Reconstructor) performance(ctx context.Context, provider domain.Provider, top []domain.Position, cash float64, now time.Time) []domain.PerformancePoint {
	start := now.AddDate(0, 0, -performanceDays).Truncate(24 * time.Hour)

	points := make([]domain.PerformancePoint, performanceDays+1)
	for d := range points {
		t := start.AddDate(0, 0, d)
		if d == performanceDays {
			t = now
		}
		points[d] = domain.PerformancePoint{Date: t, Value: cash}
	}

	for i := range top {
		p := &top[i]
		sign := outcomeSign(provider, p.Outcome)

		pts, err := r.history.PriceHistory(ctx, provider, p.TokenID, start, now, 24*60)
		if err != nil || len(pts) == 0 {
			if err != nil {
				r.logger.WarnContext(ctx, "price history unavailable",
					slog.String("token_id", p.TokenID),
					slog.String("error", err.Error()),
				)
			}
			// No history at all: hold the current price flat when known.
			if p.CurrentPrice != nil {
				for d := range points {
					points[d].Value += positionValueAt(*p.CurrentPrice, p.Shares, sign)
				}
			}
			continue
		}

		for d := range points {
			price := priceAt(pts, points[d].Date)
			points[d].Value += positionValueAt(price, p.Shares, sign)
		}
	}

	return points
}

// priceAt returns the latest sample at or before t, or the first known
// sample for times before the series begins. pts must be ascending.
func priceAt(pts []domain.PricePoint, t time.Time) float64 {
	idx := sort.Search(len(pts), func(i int) bool { return pts[i].Time.After(t) })
	if idx == 0 {
		return pts[0].Price
	}
	return pts[idx-1].Price
}

// positionValueAt converts a yes-side price sample into this position's
// value.
func positionValueAt(price, shares, sign float64) float64 {
	if sign < 0 {
		price = 1 - price
	}
	return price * shares
}

// outcomeSign is -1 for a Kalshi no-side position, whose value moves
// inversely to the yes price the history endpoint reports.
func outcomeSign(provider domain.Provider, outcome string) float64 {
	if provider == domain.ProviderKalshi && strings.EqualFold(outcome, "No") {
		return -1
	}
	return 1
}

// cashBalance extracts the cash component from the mirrored balances.
func cashBalance(balances []domain.Balance) float64 {
	var cash float64
	for i := range balances {
		switch strings.ToUpper(balances[i].Symbol) {
		case "USDC", "USD":
			cash += balances[i].Amount
		}
	}
	return cash
}

// topByValue returns up to n positions ordered by known value descending;
// positions with unknown value rank last.
func topByValue(positions []domain.Position, n int) []domain.Position {
	sorted := make([]domain.Position, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		vi, vj := sorted[i].Value, sorted[j].Value
		switch {
		case vi == nil:
			return false
		case vj == nil:
			return true
		default:
			return *vi > *vj
		}
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
