package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tummybutters/marketmirror/internal/crypto"
	"github.com/tummybutters/marketmirror/internal/domain"
	"github.com/tummybutters/marketmirror/internal/platform/kalshi"
)

// usdcScale converts dollar amounts to USDC base units (6 decimals).
const usdcScale = 1_000_000

// Trader passes order placements and cancellations through to the
// provider and records each exchange as an append-only trading action.
// No risk management happens here; the provider accepts or rejects.
type Trader struct {
	sessions SessionFactory
	actions  domain.ActionStore
	logger   *slog.Logger

	now func() time.Time
}

// NewTrader creates a Trader.
func NewTrader(sessions SessionFactory, actions domain.ActionStore, logger *slog.Logger) *Trader {
	return &Trader{
		sessions: sessions,
		actions:  actions,
		logger:   logger,
		now:      time.Now,
	}
}

// PlaceOrder validates, signs where the venue requires it, forwards the
// order, and records the request/response pair.
func (t *Trader) PlaceOrder(ctx context.Context, userID string, req domain.OrderRequest) (domain.OrderResult, error) {
	if req.TokenID == "" {
		return domain.OrderResult{}, fmt.Errorf("trader: token id required: %w", domain.ErrInvalidOrder)
	}
	if req.Price <= 0 || req.Price >= 1 {
		return domain.OrderResult{}, fmt.Errorf("trader: price must be in (0, 1): %w", domain.ErrInvalidOrder)
	}
	if req.Size <= 0 {
		return domain.OrderResult{}, fmt.Errorf("trader: size must be positive: %w", domain.ErrInvalidOrder)
	}

	var (
		result domain.OrderResult
		err    error
	)
	switch req.Provider {
	case domain.ProviderPolymarket:
		result, err = t.placePolymarket(ctx, userID, req)
	case domain.ProviderKalshi:
		result, err = t.placeKalshi(ctx, userID, req)
	default:
		return domain.OrderResult{}, fmt.Errorf("trader: unsupported provider %q: %w", req.Provider, domain.ErrInvalidOrder)
	}

	t.record(ctx, userID, req.Provider, domain.ActionPlaceOrder, req, result)
	return result, err
}

func (t *Trader) placePolymarket(ctx context.Context, userID string, req domain.OrderRequest) (domain.OrderResult, error) {
	sess, err := t.sessions.Polymarket(ctx, userID)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("trader: polymarket session: %w", err)
	}

	signer := sess.Clob.Signer()
	wallet := signer.Address().Hex()

	// Scale dollars to USDC base units. A buy spends price*size USDC for
	// size shares; a sell is the reverse.
	shares := int64(math.Round(req.Size * usdcScale))
	notional := int64(math.Round(req.Price * req.Size * usdcScale))

	sideInt := 0
	makerAmount, takerAmount := notional, shares
	if req.Side == domain.OrderSideSell {
		sideInt = 1
		makerAmount, takerAmount = shares, notional
	}

	payload := crypto.OrderPayload{
		Salt:          fmt.Sprintf("%d", t.now().UnixNano()),
		Maker:         wallet,
		Signer:        wallet,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       req.TokenID,
		MakerAmount:   fmt.Sprintf("%d", makerAmount),
		TakerAmount:   fmt.Sprintf("%d", takerAmount),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          sideInt,
		SignatureType: 0,
	}

	signature, err := signer.SignOrder(payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("trader: sign order: %w", err)
	}

	apiResult, err := sess.Clob.PostOrder(ctx, payload, signature, "GTC")
	if err != nil {
		return domain.OrderResult{Message: err.Error()}, fmt.Errorf("trader: post order: %w", err)
	}
	return domain.OrderResult{
		Success: apiResult.Success,
		OrderID: apiResult.OrderID,
		Status:  apiResult.Status,
		Message: apiResult.ErrorMsg,
	}, nil
}

func (t *Trader) placeKalshi(ctx context.Context, userID string, req domain.OrderRequest) (domain.OrderResult, error) {
	acct, err := t.sessions.Kalshi(ctx, userID)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("trader: kalshi session: %w", err)
	}

	cents := int64(math.Round(req.Price * 100))
	order := kalshiOrderFromRequest(req, cents)

	resp, err := acct.PlaceOrder(ctx, order)
	if err != nil {
		return domain.OrderResult{Message: err.Error()}, fmt.Errorf("trader: place order: %w", err)
	}
	return domain.OrderResult{
		Success: resp.Order.OrderID != "",
		OrderID: resp.Order.OrderID,
		Status:  resp.Order.Status,
	}, nil
}

// CancelOrder forwards a cancellation and records it.
func (t *Trader) CancelOrder(ctx context.Context, userID string, provider domain.Provider, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("trader: order id required: %w", domain.ErrInvalidOrder)
	}

	var err error
	switch provider {
	case domain.ProviderPolymarket:
		var sess *PolymarketSession
		sess, err = t.sessions.Polymarket(ctx, userID)
		if err == nil {
			err = sess.Clob.CancelOrder(ctx, orderID)
		}
	case domain.ProviderKalshi:
		var acct KalshiAccount
		acct, err = t.sessions.Kalshi(ctx, userID)
		if err == nil {
			err = acct.CancelOrder(ctx, orderID)
		}
	default:
		return fmt.Errorf("trader: unsupported provider %q: %w", provider, domain.ErrInvalidOrder)
	}

	status := "cancelled"
	if err != nil {
		status = "cancel failed: " + err.Error()
	}
	t.record(ctx, userID, provider, domain.ActionCancelOrder,
		map[string]string{"order_id": orderID},
		map[string]string{"status": status},
	)
	if err != nil {
		return fmt.Errorf("trader: cancel order %s: %w", orderID, err)
	}
	return nil
}

// record appends the audit row best-effort; a failed append never fails
// the trade that already happened.
func (t *Trader) record(ctx context.Context, userID string, provider domain.Provider, typ domain.ActionType, req, resp any) {
	reqJSON, _ := json.Marshal(req)
	respJSON, _ := json.Marshal(resp)

	action := domain.TradingAction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Provider:  provider,
		Type:      typ,
		Request:   reqJSON,
		Response:  respJSON,
		CreatedAt: t.now().UTC(),
	}
	if err := t.actions.Append(ctx, action); err != nil {
		t.logger.WarnContext(ctx, "trading action append failed",
			slog.String("user_id", userID),
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}

// kalshiOrderFromRequest maps the neutral request onto the Kalshi order
// shape: yes/no side with the limit price in cents on the matching field.
func kalshiOrderFromRequest(req domain.OrderRequest, cents int64) (order kalshi.KalshiOrder) {
	order.Ticker = req.TokenID
	order.Action = string(req.Side)
	order.Type = "limit"
	order.Count = int64(math.Round(req.Size))

	side := strings.ToLower(req.Outcome)
	if side != "no" {
		side = "yes"
	}
	order.Side = side
	if side == "yes" {
		order.YesPrice = &cents
	} else {
		order.NoPrice = &cents
	}
	return order
}
