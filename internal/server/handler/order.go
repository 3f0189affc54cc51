package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// OrderReader defines the mirror reads the order handler requires.
type OrderReader interface {
	GetOrders(ctx context.Context, userID string, provider domain.Provider) ([]domain.Order, error)
}

// TraderService forwards placements and cancellations to the provider.
type TraderService interface {
	PlaceOrder(ctx context.Context, userID string, req domain.OrderRequest) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, userID string, provider domain.Provider, orderID string) error
}

// OrderHandler serves mirrored orders plus the thin trading pass-through.
type OrderHandler struct {
	mirror OrderReader
	trader TraderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(mirror OrderReader, trader TraderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		mirror: mirror,
		trader: trader,
		logger: logger,
	}
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// ListOrders returns the mirrored resting orders for a user.
// GET /api/orders?user_id=...&provider=polymarket
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}
	provider, err := domain.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.mirror.GetOrders(r.Context(), userID, provider)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// placeOrderRequest is the JSON body for order placement.
type placeOrderRequest struct {
	UserID   string  `json:"user_id"`
	Provider string  `json:"provider"`
	TokenID  string  `json:"token_id"`
	Side     string  `json:"side"`
	Outcome  string  `json:"outcome,omitempty"`
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
}

// PlaceOrder forwards an order to the provider.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.UserID == "" || body.TokenID == "" {
		writeError(w, http.StatusBadRequest, "user_id and token_id are required")
		return
	}
	provider, err := domain.ParseProvider(body.Provider)
	if err != nil || provider == domain.ProviderNone {
		writeError(w, http.StatusBadRequest, "provider must be polymarket or kalshi")
		return
	}
	side := domain.OrderSideBuy
	if body.Side == string(domain.OrderSideSell) {
		side = domain.OrderSideSell
	}

	req := domain.OrderRequest{
		Provider: provider,
		TokenID:  body.TokenID,
		Side:     side,
		Outcome:  body.Outcome,
		Price:    body.Price,
		Size:     body.Size,
	}

	result, err := h.trader.PlaceOrder(r.Context(), body.UserID, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, domain.ErrNotConnected) {
			writeError(w, http.StatusConflict, "provider not connected")
			return
		}
		if errors.Is(err, domain.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: place order failed",
			slog.String("user_id", body.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place order")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// CancelOrder cancels an order on the provider by its id.
// DELETE /api/orders/{id}?user_id=...&provider=kalshi
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}
	provider, err := domain.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil || provider == domain.ProviderNone {
		writeError(w, http.StatusBadRequest, "provider must be polymarket or kalshi")
		return
	}

	if err := h.trader.CancelOrder(r.Context(), userID, provider, id); err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			writeError(w, http.StatusConflict, "provider not connected")
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cancel order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelled",
		"order_id": id,
	})
}
