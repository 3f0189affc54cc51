package sync

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
	"github.com/tummybutters/marketmirror/internal/platform/polymarket"
)

type fakeActionStore struct {
	actions   []domain.TradingAction
	appendErr error
}

func (f *fakeActionStore) Append(ctx context.Context, action domain.TradingAction) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeActionStore) ListRecent(ctx context.Context, userID string, provider domain.Provider, limit int) ([]domain.TradingAction, error) {
	return f.actions, nil
}

func newTrader(factory *fakeFactory, actions *fakeActionStore) *Trader {
	tr := NewTrader(factory, actions, testLogger())
	tr.now = func() time.Time { return testNow }
	return tr
}

func TestPlaceOrderValidation(t *testing.T) {
	tr := newTrader(&fakeFactory{}, &fakeActionStore{})

	cases := []struct {
		name string
		req  domain.OrderRequest
	}{
		{"missing token", domain.OrderRequest{Provider: domain.ProviderKalshi, Side: domain.OrderSideBuy, Price: 0.5, Size: 1}},
		{"price zero", domain.OrderRequest{Provider: domain.ProviderKalshi, TokenID: "T", Side: domain.OrderSideBuy, Price: 0, Size: 1}},
		{"price one", domain.OrderRequest{Provider: domain.ProviderKalshi, TokenID: "T", Side: domain.OrderSideBuy, Price: 1, Size: 1}},
		{"size zero", domain.OrderRequest{Provider: domain.ProviderKalshi, TokenID: "T", Side: domain.OrderSideBuy, Price: 0.5, Size: 0}},
		{"bad provider", domain.OrderRequest{Provider: "nasdaq", TokenID: "T", Side: domain.OrderSideBuy, Price: 0.5, Size: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tr.PlaceOrder(context.Background(), "u1", tc.req)
			if !errors.Is(err, domain.ErrInvalidOrder) {
				t.Errorf("err = %v, want ErrInvalidOrder", err)
			}
		})
	}
}

func TestPlaceOrderPolymarketBuy(t *testing.T) {
	clob := &fakeClobAPI{postRes: polymarket.APIOrderResult{Success: true, OrderID: "pm-1", Status: "live"}}
	factory := &fakeFactory{pm: &PolymarketSession{Address: "0xabc", Data: &fakeDataAPI{}, Clob: clob}}
	actions := &fakeActionStore{}
	tr := newTrader(factory, actions)

	res, err := tr.PlaceOrder(context.Background(), "u1", domain.OrderRequest{
		Provider: domain.ProviderPolymarket,
		TokenID:  "tok-1",
		Side:     domain.OrderSideBuy,
		Price:    0.45,
		Size:     20,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !res.Success || res.OrderID != "pm-1" {
		t.Errorf("result = %+v", res)
	}

	if len(clob.posted) != 1 {
		t.Fatalf("posted = %d, want 1", len(clob.posted))
	}
	payload := clob.posted[0]
	// A buy of 20 shares at $0.45 spends 9 USDC: maker amount is the
	// notional, taker amount the share count, both in 6-decimal units.
	if payload.MakerAmount != strconv.FormatInt(int64(math.Round(0.45*20*usdcScale)), 10) {
		t.Errorf("MakerAmount = %s", payload.MakerAmount)
	}
	if payload.TakerAmount != strconv.FormatInt(20*usdcScale, 10) {
		t.Errorf("TakerAmount = %s", payload.TakerAmount)
	}
	if payload.Side != 0 {
		t.Errorf("Side = %d, want 0 for buy", payload.Side)
	}
	if payload.Maker != testSigner.Address().Hex() || payload.Signer != payload.Maker {
		t.Errorf("maker/signer = %s/%s", payload.Maker, payload.Signer)
	}

	if len(actions.actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(actions.actions))
	}
	a := actions.actions[0]
	if a.Type != domain.ActionPlaceOrder || a.Provider != domain.ProviderPolymarket {
		t.Errorf("action = %+v", a)
	}
	if len(a.Request) == 0 || len(a.Response) == 0 {
		t.Error("action payloads empty")
	}
}

func TestPlaceOrderPolymarketSellSwapsAmounts(t *testing.T) {
	clob := &fakeClobAPI{}
	factory := &fakeFactory{pm: &PolymarketSession{Clob: clob}}
	tr := newTrader(factory, &fakeActionStore{})

	_, err := tr.PlaceOrder(context.Background(), "u1", domain.OrderRequest{
		Provider: domain.ProviderPolymarket,
		TokenID:  "tok-1",
		Side:     domain.OrderSideSell,
		Price:    0.45,
		Size:     20,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	payload := clob.posted[0]
	if payload.Side != 1 {
		t.Errorf("Side = %d, want 1 for sell", payload.Side)
	}
	if payload.MakerAmount != strconv.FormatInt(20*usdcScale, 10) {
		t.Errorf("MakerAmount = %s, want shares", payload.MakerAmount)
	}
	if payload.TakerAmount != strconv.FormatInt(int64(math.Round(0.45*20*usdcScale)), 10) {
		t.Errorf("TakerAmount = %s, want notional", payload.TakerAmount)
	}
}

func TestPlaceOrderKalshiNoSide(t *testing.T) {
	acct := &fakeKalshiAccount{}
	acct.placeResp.Order.OrderID = "k-9"
	acct.placeResp.Order.Status = "resting"
	factory := &fakeFactory{acct: acct}
	actions := &fakeActionStore{}
	tr := newTrader(factory, actions)

	res, err := tr.PlaceOrder(context.Background(), "u1", domain.OrderRequest{
		Provider: domain.ProviderKalshi,
		TokenID:  "RAIN-24",
		Side:     domain.OrderSideBuy,
		Outcome:  "No",
		Price:    0.35,
		Size:     7,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !res.Success || res.OrderID != "k-9" || res.Status != "resting" {
		t.Errorf("result = %+v", res)
	}

	if len(acct.placed) != 1 {
		t.Fatalf("placed = %d, want 1", len(acct.placed))
	}
	order := acct.placed[0]
	if order.Ticker != "RAIN-24" || order.Action != "buy" || order.Side != "no" || order.Type != "limit" || order.Count != 7 {
		t.Errorf("order = %+v", order)
	}
	if order.NoPrice == nil || *order.NoPrice != 35 {
		t.Errorf("NoPrice = %v, want 35 cents", order.NoPrice)
	}
	if order.YesPrice != nil {
		t.Errorf("YesPrice = %v, want nil on a no order", order.YesPrice)
	}
}

func TestPlaceOrderKalshiDefaultsToYes(t *testing.T) {
	acct := &fakeKalshiAccount{}
	tr := newTrader(&fakeFactory{acct: acct}, &fakeActionStore{})

	if _, err := tr.PlaceOrder(context.Background(), "u1", domain.OrderRequest{
		Provider: domain.ProviderKalshi,
		TokenID:  "T",
		Side:     domain.OrderSideSell,
		Price:    0.5,
		Size:     1,
	}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	order := acct.placed[0]
	if order.Side != "yes" || order.YesPrice == nil || *order.YesPrice != 50 {
		t.Errorf("order = %+v", order)
	}
}

func TestPlaceOrderRecordedEvenWhenAppendFails(t *testing.T) {
	acct := &fakeKalshiAccount{}
	acct.placeResp.Order.OrderID = "k-1"
	actions := &fakeActionStore{appendErr: errors.New("db down")}
	tr := newTrader(&fakeFactory{acct: acct}, actions)

	res, err := tr.PlaceOrder(context.Background(), "u1", domain.OrderRequest{
		Provider: domain.ProviderKalshi,
		TokenID:  "T",
		Side:     domain.OrderSideBuy,
		Price:    0.5,
		Size:     1,
	})
	if err != nil {
		t.Fatalf("audit failure must not fail the trade: %v", err)
	}
	if !res.Success {
		t.Errorf("result = %+v", res)
	}
}

func TestCancelOrder(t *testing.T) {
	acct := &fakeKalshiAccount{}
	actions := &fakeActionStore{}
	tr := newTrader(&fakeFactory{acct: acct}, actions)

	if err := tr.CancelOrder(context.Background(), "u1", domain.ProviderKalshi, "k-5"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if len(acct.cancelled) != 1 || acct.cancelled[0] != "k-5" {
		t.Errorf("cancelled = %v", acct.cancelled)
	}
	if len(actions.actions) != 1 || actions.actions[0].Type != domain.ActionCancelOrder {
		t.Errorf("actions = %+v", actions.actions)
	}
}

func TestCancelOrderNotConnected(t *testing.T) {
	tr := newTrader(&fakeFactory{kcErr: domain.ErrNotConnected}, &fakeActionStore{})
	err := tr.CancelOrder(context.Background(), "u1", domain.ProviderKalshi, "k-5")
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}
