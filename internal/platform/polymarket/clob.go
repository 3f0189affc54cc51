package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tummybutters/marketmirror/internal/crypto"
	"github.com/tummybutters/marketmirror/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API: resting orders, order placement/cancellation, and
// price history.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// signer is the EIP-712 signer for order signatures and auth messages.
// hmac is the HMAC authenticator for API requests; pass nil and call
// DeriveAPIKey when only the wallet key is known.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
	}
}

// GetOpenOrders returns all resting orders for the authenticated wallet in
// one call; the CLOB does not paginate this endpoint.
func (c *ClobClient) GetOpenOrders(ctx context.Context) ([]APIOpenOrder, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get open orders: %w", err)
	}

	var apiOrders []APIOpenOrder
	if err := json.Unmarshal(respBody, &apiOrders); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode orders: %w", err)
	}

	return apiOrders, nil
}

// PostOrder submits a signed order to the CLOB API and returns the result.
// The payload must already carry an EIP-712 signature from SignOrder.
func (c *ClobClient) PostOrder(ctx context.Context, order crypto.OrderPayload, signature, orderType string) (APIOrderResult, error) {
	body := map[string]any{
		"order": map[string]any{
			"salt":          order.Salt,
			"tokenID":       order.TokenID,
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"side":          sideLabel(order.Side),
			"feeRateBps":    order.FeeRateBps,
			"nonce":         order.Nonce,
			"expiration":    order.Expiration,
			"signatureType": order.SignatureType,
			"signature":     signature,
			"maker":         order.Maker,
			"signer":        order.Signer,
			"taker":         order.Taker,
		},
		"owner":     order.Maker,
		"orderType": orderType,
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return APIOrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var result APIOrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return APIOrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	return result, nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{
		"orderID": orderID,
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: cancel failed: %s", result.ErrorMsg)
	}

	return nil
}

// GetPriceHistory returns the price series for a token over [from, to].
// fidelity is the sample resolution in minutes. The endpoint is public.
func (c *ClobClient) GetPriceHistory(ctx context.Context, tokenID string, from, to time.Time, fidelityMinutes int) ([]APIPricePoint, error) {
	params := url.Values{}
	params.Set("market", tokenID)
	params.Set("startTs", strconv.FormatInt(from.Unix(), 10))
	params.Set("endTs", strconv.FormatInt(to.Unix(), 10))
	params.Set("fidelity", strconv.Itoa(fidelityMinutes))

	path := "/prices-history?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: price history: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: read price history: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, fmt.Errorf("polymarket/clob: price history %s: %w", tokenID, err)
	}

	var out struct {
		History []APIPricePoint `json:"history"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode price history: %w", err)
	}

	return out.History, nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain an HMAC API key. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. Per Polymarket docs, L1 requires POLY_ADDRESS,
// POLY_SIGNATURE, POLY_TIMESTAMP, POLY_NONCE. On success it populates the
// client's hmacAuth field.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", fmt.Sprintf("%d", timestamp))
	req.Header.Set("POLY_NONCE", fmt.Sprintf("%d", nonce))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket/clob: auth failed (HTTP %d): %s", resp.StatusCode, truncate(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}

	return nil
}

// Signer returns the EIP-712 signer configured for this client.
func (c *ClobClient) Signer() *crypto.Signer {
	return c.signer
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func sideLabel(side int) string {
	if side == 1 {
		return "SELL"
	}
	return "BUY"
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Apply HMAC authentication headers.
	if c.hmacAuth != nil {
		address := c.signer.Address().Hex()
		headers := c.hmacAuth.L2Headers(address, method, path, bodyStr)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors,
// carrying a truncated response body for diagnostics.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := truncate(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

const maxErrBody = 512

func truncate(body []byte) string {
	if len(body) > maxErrBody {
		return string(body[:maxErrBody]) + "..."
	}
	return string(body)
}
