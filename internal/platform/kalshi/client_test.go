package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

var testKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

func testKeyPEM(t *testing.T) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(testKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "key-123")
	if err := client.SetRSAPrivateKey(testKeyPEM(t)); err != nil {
		t.Fatalf("SetRSAPrivateKey: %v", err)
	}
	return client, server
}

func TestSignedRequestHeaders(t *testing.T) {
	var gotKey, gotSig, gotTS, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("KALSHI-ACCESS-KEY")
		gotSig = r.Header.Get("KALSHI-ACCESS-SIGNATURE")
		gotTS = r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		gotPath = r.URL.Path
		w.Write([]byte(`{"balance": 1000}`))
	}))

	bal, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance != 1000 {
		t.Errorf("balance = %d, want 1000", bal.Balance)
	}

	if gotKey != "key-123" {
		t.Errorf("access key = %q", gotKey)
	}
	ms, err := strconv.ParseInt(gotTS, 10, 64)
	if err != nil {
		t.Fatalf("timestamp %q not numeric: %v", gotTS, err)
	}
	if drift := time.Since(time.UnixMilli(ms)); drift < 0 || drift > time.Minute {
		t.Errorf("timestamp drift = %v", drift)
	}

	// The signature covers timestamp + method + path and must verify
	// against the configured key.
	sig, err := base64.StdEncoding.DecodeString(gotSig)
	if err != nil {
		t.Fatalf("signature not base64: %v", err)
	}
	hash := sha256.Sum256([]byte(gotTS + http.MethodGet + gotPath))
	err = rsa.VerifyPSS(&testKey.PublicKey, crypto.SHA256, hash[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

func TestSignedRequestStripsQueryFromSignature(t *testing.T) {
	var gotSig, gotTS string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("KALSHI-ACCESS-SIGNATURE")
		gotTS = r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		w.Write([]byte(`{"market_positions": [], "cursor": ""}`))
	}))

	if _, err := client.GetPositions(context.Background(), "page-2"); err != nil {
		t.Fatalf("GetPositions: %v", err)
	}

	sig, _ := base64.StdEncoding.DecodeString(gotSig)
	hash := sha256.Sum256([]byte(gotTS + http.MethodGet + "/portfolio/positions"))
	err := rsa.VerifyPSS(&testKey.PublicKey, crypto.SHA256, hash[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		t.Errorf("signature must cover the path without its query: %v", err)
	}
}

func TestGetPositionsCursor(t *testing.T) {
	var gotCursor string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		w.Write([]byte(`{"market_positions": [{"ticker": "T1", "position": -3, "market_exposure": 120}], "cursor": "next"}`))
	}))

	page, err := client.GetPositions(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if gotCursor != "abc" {
		t.Errorf("cursor param = %q", gotCursor)
	}
	if page.Cursor != "next" || len(page.Positions) != 1 {
		t.Errorf("page = %+v", page)
	}
	if page.Positions[0].Position != -3 {
		t.Errorf("position = %+v", page.Positions[0])
	}
}

func TestGetOrdersFiltersResting(t *testing.T) {
	var gotStatus string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStatus = r.URL.Query().Get("status")
		w.Write([]byte(`{"orders": [{"order_id": "o1", "ticker": "T1", "action": "buy", "side": "yes", "yes_price": 40, "initial_count": 10, "remaining_count": 10}], "cursor": ""}`))
	}))

	page, err := client.GetOrders(context.Background(), "")
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if gotStatus != "resting" {
		t.Errorf("status param = %q, want resting", gotStatus)
	}
	if len(page.Orders) != 1 || page.Orders[0].YesPrice != 40 {
		t.Errorf("page = %+v", page)
	}
}

func TestGetMarketCandles(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	var gotQuery map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"start_ts":        r.URL.Query().Get("start_ts"),
			"end_ts":          r.URL.Query().Get("end_ts"),
			"period_interval": r.URL.Query().Get("period_interval"),
		}
		w.Write([]byte(`{"candlesticks": [{"end_period_ts": 1754006400, "price": {"open": 40, "close": 45}, "yes_bid": {"close": 44}, "yes_ask": {"close": 46}}]}`))
	}))

	candles, err := client.GetMarketCandles(context.Background(), "RAIN-24", from, to, 60)
	if err != nil {
		t.Fatalf("GetMarketCandles: %v", err)
	}
	if gotQuery["start_ts"] != strconv.FormatInt(from.Unix(), 10) || gotQuery["end_ts"] != strconv.FormatInt(to.Unix(), 10) {
		t.Errorf("window params = %v", gotQuery)
	}
	if gotQuery["period_interval"] != "60" {
		t.Errorf("period_interval = %q", gotQuery["period_interval"])
	}
	if len(candles) != 1 || candles[0].Price.Close != 45 || candles[0].YesBid.Close != 44 {
		t.Errorf("candles = %+v", candles)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"code": "some_code", "message": "nope"}`))
			}))

			_, err := client.GetBalance(context.Background())
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPlaceOrderImmediateCancel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"order": {"order_id": "o1", "status": "canceled"}}`))
	}))

	_, err := client.PlaceOrder(context.Background(), KalshiOrder{Ticker: "T1", Action: "buy", Side: "yes", Type: "limit", Count: 1})
	if err == nil {
		t.Fatal("expected error for immediately cancelled order")
	}
}

func TestUnsignedRequestRejected(t *testing.T) {
	client := NewClient("http://localhost:0", "key-123")
	_, err := client.GetBalance(context.Background())
	if err == nil {
		t.Fatal("expected error without a configured key")
	}
}
