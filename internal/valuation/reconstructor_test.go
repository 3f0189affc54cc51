package valuation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

var testNow = time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)

type fakeMirror struct {
	balances  []domain.Balance
	positions []domain.Position
}

func (f *fakeMirror) ReplacePositions(ctx context.Context, userID string, provider domain.Provider, positions []domain.Position) error {
	return nil
}

func (f *fakeMirror) ReplaceOrders(ctx context.Context, userID string, provider domain.Provider, orders []domain.Order) error {
	return nil
}

func (f *fakeMirror) UpsertBalances(ctx context.Context, balances []domain.Balance) error {
	return nil
}

func (f *fakeMirror) GetBalances(ctx context.Context, userID string, provider domain.Provider) ([]domain.Balance, error) {
	return f.balances, nil
}

func (f *fakeMirror) GetPositions(ctx context.Context, userID string, provider domain.Provider) ([]domain.Position, error) {
	return f.positions, nil
}

func (f *fakeMirror) GetOrders(ctx context.Context, userID string, provider domain.Provider) ([]domain.Order, error) {
	return nil, nil
}

type fakeRuns struct {
	runs map[domain.Provider]domain.SyncRun
}

func (f *fakeRuns) StartRun(ctx context.Context, run domain.SyncRun) error { return nil }

func (f *fakeRuns) FinishRun(ctx context.Context, id string, status domain.SyncStatus, errMsg *string, meta map[string]any) error {
	return nil
}

func (f *fakeRuns) GetRun(ctx context.Context, id string) (domain.SyncRun, error) {
	return domain.SyncRun{}, domain.ErrNotFound
}

func (f *fakeRuns) LatestRun(ctx context.Context, userID string, provider domain.Provider) (domain.SyncRun, error) {
	run, ok := f.runs[provider]
	if !ok {
		return domain.SyncRun{}, domain.ErrNotFound
	}
	return run, nil
}

func (f *fakeRuns) ListRuns(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.SyncRun, error) {
	return nil, nil
}

func (f *fakeRuns) MarkStale(ctx context.Context, cutoff time.Time, errMsg string) (int64, error) {
	return 0, nil
}

type fakeHistorian struct {
	series map[string][]domain.PricePoint
	errIDs map[string]bool
	calls  []string
}

func (f *fakeHistorian) PriceHistory(ctx context.Context, provider domain.Provider, instrumentID string, from, to time.Time, resolutionMinutes int) ([]domain.PricePoint, error) {
	f.calls = append(f.calls, instrumentID)
	if f.errIDs[instrumentID] {
		return nil, errors.New("history unavailable")
	}
	return f.series[instrumentID], nil
}

func fptr(v float64) *float64 { return &v }

func newReconstructor(mirror *fakeMirror, runs *fakeRuns, hist *fakeHistorian) *Reconstructor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReconstructor(mirror, runs, hist, logger)
	r.now = func() time.Time { return testNow }
	return r
}

func syncedRun(provider domain.Provider) domain.SyncRun {
	finished := testNow.Add(-time.Hour)
	return domain.SyncRun{
		ID:         "run-1",
		UserID:     "u1",
		Provider:   provider,
		Status:     domain.SyncStatusSuccess,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
	}
}

func TestGetPortfolioTotals(t *testing.T) {
	mirror := &fakeMirror{
		balances: []domain.Balance{
			{Symbol: "USDC", Amount: 100},
			{Symbol: "WETH", Amount: 5},
		},
		positions: []domain.Position{
			{TokenID: "t1", Shares: 10, CurrentPrice: fptr(0.6), Value: fptr(6)},
			{TokenID: "t2", Shares: 3, Value: nil},
		},
	}
	runs := &fakeRuns{runs: map[domain.Provider]domain.SyncRun{
		domain.ProviderPolymarket: syncedRun(domain.ProviderPolymarket),
	}}
	r := newReconstructor(mirror, runs, &fakeHistorian{})

	got, err := r.GetPortfolio(context.Background(), "u1", domain.ProviderNone)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if got.Provider != domain.ProviderPolymarket {
		t.Errorf("provider = %s", got.Provider)
	}
	if got.CashBalance != 100 {
		t.Errorf("cash = %v, want 100 (non-cash symbols excluded)", got.CashBalance)
	}
	if got.PositionsValue != 6 || got.TotalValue != 106 {
		t.Errorf("positions = %v total = %v, want 6/106", got.PositionsValue, got.TotalValue)
	}
	if got.LastSyncedAt == nil || !got.LastSyncedAt.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("LastSyncedAt = %v", got.LastSyncedAt)
	}
	if len(got.Positions) != 2 {
		t.Errorf("positions = %d", len(got.Positions))
	}
	if got.PnL24h != nil {
		t.Errorf("PnL24h = %v, want nil with no history", got.PnL24h)
	}
}

func TestGetPortfolioNoProvider(t *testing.T) {
	r := newReconstructor(&fakeMirror{}, &fakeRuns{}, &fakeHistorian{})

	got, err := r.GetPortfolio(context.Background(), "u1", domain.ProviderNone)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if got.Provider != domain.ProviderNone || got.TotalValue != 0 {
		t.Errorf("summary = %+v, want zero value", got)
	}
}

func TestGetPortfolioPrefersRequestedProvider(t *testing.T) {
	runs := &fakeRuns{runs: map[domain.Provider]domain.SyncRun{
		domain.ProviderPolymarket: syncedRun(domain.ProviderPolymarket),
		domain.ProviderKalshi:     syncedRun(domain.ProviderKalshi),
	}}
	r := newReconstructor(&fakeMirror{}, runs, &fakeHistorian{})

	got, err := r.GetPortfolio(context.Background(), "u1", domain.ProviderKalshi)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if got.Provider != domain.ProviderKalshi {
		t.Errorf("provider = %s, want kalshi", got.Provider)
	}
}

func TestPnL24h(t *testing.T) {
	mirror := &fakeMirror{
		balances: []domain.Balance{{Symbol: "USDC", Amount: 50}},
		positions: []domain.Position{
			{TokenID: "up", Shares: 10, Value: fptr(7)},
			{TokenID: "dead", Shares: 5, Value: fptr(2)},
		},
	}
	runs := &fakeRuns{runs: map[domain.Provider]domain.SyncRun{
		domain.ProviderPolymarket: syncedRun(domain.ProviderPolymarket),
	}}
	hist := &fakeHistorian{
		series: map[string][]domain.PricePoint{
			"up": {
				{Time: testNow.Add(-23 * time.Hour), Price: 0.50},
				{Time: testNow.Add(-12 * time.Hour), Price: 0.55},
				{Time: testNow.Add(-time.Hour), Price: 0.70},
			},
		},
		errIDs: map[string]bool{"dead": true},
	}
	r := newReconstructor(mirror, runs, hist)

	got, err := r.GetPortfolio(context.Background(), "u1", domain.ProviderPolymarket)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	// (0.70 - 0.50) * 10 shares; the position with no history contributes
	// nothing rather than failing the whole number.
	if got.PnL24h == nil || *got.PnL24h < 1.999 || *got.PnL24h > 2.001 {
		t.Errorf("PnL24h = %v, want 2.0", got.PnL24h)
	}
}

func TestPnL24hKalshiNoSideInverts(t *testing.T) {
	mirror := &fakeMirror{
		balances: []domain.Balance{{Symbol: "USD", Amount: 10}},
		positions: []domain.Position{
			{TokenID: "TICK", Outcome: "No", Shares: 4, Value: fptr(2)},
		},
	}
	runs := &fakeRuns{runs: map[domain.Provider]domain.SyncRun{
		domain.ProviderKalshi: syncedRun(domain.ProviderKalshi),
	}}
	hist := &fakeHistorian{series: map[string][]domain.PricePoint{
		"TICK": {
			{Time: testNow.Add(-20 * time.Hour), Price: 0.40},
			{Time: testNow.Add(-time.Hour), Price: 0.50},
		},
	}}
	r := newReconstructor(mirror, runs, hist)

	got, err := r.GetPortfolio(context.Background(), "u1", domain.ProviderKalshi)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	// Yes price rose 0.10, so the no side lost 0.10 * 4 shares.
	if got.PnL24h == nil || *got.PnL24h > -0.399 || *got.PnL24h < -0.401 {
		t.Errorf("PnL24h = %v, want -0.4", got.PnL24h)
	}
}

func TestPerformanceSeriesShape(t *testing.T) {
	mirror := &fakeMirror{
		balances: []domain.Balance{{Symbol: "USDC", Amount: 100}},
		positions: []domain.Position{
			{TokenID: "t1", Shares: 10, CurrentPrice: fptr(0.6), Value: fptr(6)},
		},
	}
	runs := &fakeRuns{runs: map[domain.Provider]domain.SyncRun{
		domain.ProviderPolymarket: syncedRun(domain.ProviderPolymarket),
	}}
	// One sample 10 days ago at 0.4, one yesterday at 0.6.
	hist := &fakeHistorian{series: map[string][]domain.PricePoint{
		"t1": {
			{Time: testNow.AddDate(0, 0, -10), Price: 0.40},
			{Time: testNow.AddDate(0, 0, -1), Price: 0.60},
		},
	}}
	r := newReconstructor(mirror, runs, hist)

	got, err := r.GetPortfolio(context.Background(), "u1", domain.ProviderPolymarket)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if len(got.Performance) != 31 {
		t.Fatalf("points = %d, want 31", len(got.Performance))
	}

	first := got.Performance[0]
	// Days before the first sample carry its price backward: 100 + 0.4*10.
	if first.Value < 103.999 || first.Value > 104.001 {
		t.Errorf("first point = %v, want 104", first.Value)
	}
	last := got.Performance[30]
	if !last.Date.Equal(testNow) {
		t.Errorf("last point date = %v, want now", last.Date)
	}
	// The final point prices at the latest sample: 100 + 0.6*10.
	if last.Value < 105.999 || last.Value > 106.001 {
		t.Errorf("last point = %v, want 106", last.Value)
	}
	for i := 1; i < len(got.Performance); i++ {
		if !got.Performance[i].Date.After(got.Performance[i-1].Date) {
			t.Errorf("dates not ascending at %d", i)
		}
	}
}

func TestPerformanceNoHistoryHoldsCurrentPrice(t *testing.T) {
	mirror := &fakeMirror{
		balances: []domain.Balance{{Symbol: "USDC", Amount: 20}},
		positions: []domain.Position{
			{TokenID: "silent", Shares: 5, CurrentPrice: fptr(0.5), Value: fptr(2.5)},
		},
	}
	runs := &fakeRuns{runs: map[domain.Provider]domain.SyncRun{
		domain.ProviderPolymarket: syncedRun(domain.ProviderPolymarket),
	}}
	hist := &fakeHistorian{errIDs: map[string]bool{"silent": true}}
	r := newReconstructor(mirror, runs, hist)

	got, err := r.GetPortfolio(context.Background(), "u1", domain.ProviderPolymarket)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	for i, pt := range got.Performance {
		if pt.Value < 22.499 || pt.Value > 22.501 {
			t.Errorf("point %d = %v, want flat 22.5", i, pt.Value)
		}
	}
}

func TestTopByValue(t *testing.T) {
	positions := []domain.Position{
		{TokenID: "small", Value: fptr(1)},
		{TokenID: "unknown"},
		{TokenID: "big", Value: fptr(10)},
		{TokenID: "mid", Value: fptr(5)},
	}

	top := topByValue(positions, 3)
	if len(top) != 3 {
		t.Fatalf("top = %d, want 3", len(top))
	}
	if top[0].TokenID != "big" || top[1].TokenID != "mid" || top[2].TokenID != "small" {
		t.Errorf("order = %s, %s, %s", top[0].TokenID, top[1].TokenID, top[2].TokenID)
	}

	all := topByValue(positions, 10)
	if len(all) != 4 || all[3].TokenID != "unknown" {
		t.Errorf("unknown value must rank last, got %v", all)
	}
}
