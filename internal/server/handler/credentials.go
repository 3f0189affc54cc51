package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// CredentialWriter stores and removes sealed provider credentials.
type CredentialWriter interface {
	Save(ctx context.Context, userID string, provider domain.Provider, creds any) error
	Delete(ctx context.Context, userID string, provider domain.Provider) error
}

// CredentialHandler serves the provider connect/disconnect endpoints.
type CredentialHandler struct {
	store  CredentialWriter
	logger *slog.Logger
}

// NewCredentialHandler creates a CredentialHandler.
func NewCredentialHandler(store CredentialWriter, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{store: store, logger: logger}
}

// connectPolymarketRequest is the JSON body for connecting Polymarket.
type connectPolymarketRequest struct {
	UserID        string `json:"user_id"`
	PrivateKey    string `json:"private_key"`
	ProxyAddress  string `json:"proxy_address,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	APISecret     string `json:"api_secret,omitempty"`
	APIPassphrase string `json:"api_passphrase,omitempty"`
}

// ConnectPolymarket stores sealed Polymarket credentials for a user.
// PUT /api/credentials/polymarket
func (h *CredentialHandler) ConnectPolymarket(w http.ResponseWriter, r *http.Request) {
	var body connectPolymarketRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.UserID == "" || body.PrivateKey == "" {
		writeError(w, http.StatusBadRequest, "user_id and private_key are required")
		return
	}

	creds := domain.PolymarketCredentials{
		PrivateKey:    body.PrivateKey,
		ProxyAddress:  body.ProxyAddress,
		APIKey:        body.APIKey,
		APISecret:     body.APISecret,
		APIPassphrase: body.APIPassphrase,
	}
	if err := h.store.Save(r.Context(), body.UserID, domain.ProviderPolymarket, creds); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: save polymarket credentials failed",
			slog.String("user_id", body.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "connected", "provider": "polymarket"})
}

// connectKalshiRequest is the JSON body for connecting Kalshi.
type connectKalshiRequest struct {
	UserID        string `json:"user_id"`
	APIKeyID      string `json:"api_key_id"`
	PrivateKeyPEM string `json:"private_key_pem"`
}

// ConnectKalshi stores sealed Kalshi credentials for a user.
// PUT /api/credentials/kalshi
func (h *CredentialHandler) ConnectKalshi(w http.ResponseWriter, r *http.Request) {
	var body connectKalshiRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.UserID == "" || body.APIKeyID == "" || body.PrivateKeyPEM == "" {
		writeError(w, http.StatusBadRequest, "user_id, api_key_id, and private_key_pem are required")
		return
	}

	creds := domain.KalshiCredentials{
		APIKeyID:      body.APIKeyID,
		PrivateKeyPEM: []byte(body.PrivateKeyPEM),
	}
	if err := h.store.Save(r.Context(), body.UserID, domain.ProviderKalshi, creds); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: save kalshi credentials failed",
			slog.String("user_id", body.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "connected", "provider": "kalshi"})
}

// Disconnect removes stored credentials for a provider.
// DELETE /api/credentials/{provider}?user_id=...
func (h *CredentialHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	provider, err := domain.ParseProvider(pathParam(r, "provider"))
	if err != nil || provider == domain.ProviderNone {
		writeError(w, http.StatusBadRequest, "provider must be polymarket or kalshi")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	if err := h.store.Delete(r.Context(), userID, provider); err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			writeError(w, http.StatusNotFound, "provider not connected")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: delete credentials failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected", "provider": string(provider)})
}
