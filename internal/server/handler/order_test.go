package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tummybutters/marketmirror/internal/domain"
)

type fakeOrderReader struct {
	orders []domain.Order
	err    error
}

func (f *fakeOrderReader) GetOrders(ctx context.Context, userID string, provider domain.Provider) ([]domain.Order, error) {
	return f.orders, f.err
}

type fakeTrader struct {
	result    domain.OrderResult
	placeErr  error
	cancelErr error

	gotReq    domain.OrderRequest
	gotCancel string
	gotUser   string
}

func (f *fakeTrader) PlaceOrder(ctx context.Context, userID string, req domain.OrderRequest) (domain.OrderResult, error) {
	f.gotUser = userID
	f.gotReq = req
	return f.result, f.placeErr
}

func (f *fakeTrader) CancelOrder(ctx context.Context, userID string, provider domain.Provider, orderID string) error {
	f.gotUser = userID
	f.gotCancel = orderID
	return f.cancelErr
}

func TestListOrders(t *testing.T) {
	price := 0.5
	reader := &fakeOrderReader{orders: []domain.Order{
		{OrderID: "o1", Provider: domain.ProviderPolymarket, Side: domain.OrderSideBuy, Price: &price},
	}}
	h := NewOrderHandler(reader, &fakeTrader{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/orders?user_id=u1&provider=polymarket", nil)
	rec := httptest.NewRecorder()
	h.ListOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Orders) != 1 || body.Orders[0].OrderID != "o1" {
		t.Errorf("orders = %+v", body.Orders)
	}
}

func TestListOrdersEmptyIsArray(t *testing.T) {
	h := NewOrderHandler(&fakeOrderReader{}, &fakeTrader{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/orders?user_id=u1", nil)
	rec := httptest.NewRecorder()
	h.ListOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"orders":[]`) {
		t.Errorf("body = %s, want empty array not null", rec.Body)
	}
}

func TestListOrdersRequiresUser(t *testing.T) {
	h := NewOrderHandler(&fakeOrderReader{}, &fakeTrader{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()
	h.ListOrders(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPlaceOrder(t *testing.T) {
	trader := &fakeTrader{result: domain.OrderResult{Success: true, OrderID: "new-1", Status: "live"}}
	h := NewOrderHandler(&fakeOrderReader{}, trader, testLogger())

	body := `{"user_id": "u1", "provider": "kalshi", "token_id": "RAIN-24", "side": "sell", "outcome": "no", "price": 0.35, "size": 5}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if trader.gotUser != "u1" {
		t.Errorf("user = %q", trader.gotUser)
	}
	got := trader.gotReq
	if got.Provider != domain.ProviderKalshi || got.TokenID != "RAIN-24" || got.Side != domain.OrderSideSell {
		t.Errorf("request = %+v", got)
	}
	if got.Outcome != "no" || got.Price != 0.35 || got.Size != 5 {
		t.Errorf("request = %+v", got)
	}
}

func TestPlaceOrderErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", domain.ErrInvalidOrder, http.StatusBadRequest},
		{"not connected", domain.ErrNotConnected, http.StatusConflict},
		{"upstream not found", domain.ErrNotFound, http.StatusInternalServerError},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trader := &fakeTrader{placeErr: tc.err}
			h := NewOrderHandler(&fakeOrderReader{}, trader, testLogger())

			body := `{"user_id": "u1", "provider": "polymarket", "token_id": "t1", "side": "buy", "price": 0.5, "size": 1}`
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.PlaceOrder(rec, req)

			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestPlaceOrderRequiresProvider(t *testing.T) {
	h := NewOrderHandler(&fakeOrderReader{}, &fakeTrader{}, testLogger())

	body := `{"user_id": "u1", "token_id": "t1", "side": "buy", "price": 0.5, "size": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when provider omitted", rec.Code)
	}
}

func TestCancelOrder(t *testing.T) {
	trader := &fakeTrader{}
	h := NewOrderHandler(&fakeOrderReader{}, trader, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/orders/o-5?user_id=u1&provider=kalshi", nil)
	req.SetPathValue("id", "o-5")
	rec := httptest.NewRecorder()
	h.CancelOrder(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if trader.gotCancel != "o-5" {
		t.Errorf("cancelled = %q", trader.gotCancel)
	}
}

func TestCancelOrderNotConnected(t *testing.T) {
	trader := &fakeTrader{cancelErr: domain.ErrNotConnected}
	h := NewOrderHandler(&fakeOrderReader{}, trader, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/orders/o-5?user_id=u1&provider=kalshi", nil)
	req.SetPathValue("id", "o-5")
	rec := httptest.NewRecorder()
	h.CancelOrder(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when provider not connected", rec.Code)
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	trader := &fakeTrader{cancelErr: domain.ErrNotFound}
	h := NewOrderHandler(&fakeOrderReader{}, trader, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/orders/gone?user_id=u1&provider=kalshi", nil)
	req.SetPathValue("id", "gone")
	rec := httptest.NewRecorder()
	h.CancelOrder(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
