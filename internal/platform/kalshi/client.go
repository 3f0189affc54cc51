package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// Client is the REST client for the Kalshi exchange API.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
}

// NewClient creates a new Kalshi REST client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
// apiKeyID is the Kalshi API key identifier.
func NewClient(baseURL, apiKeyID string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for RSA-signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// GetBalance returns the account's USD cash balance.
func (c *Client) GetBalance(ctx context.Context) (KalshiBalance, error) {
	body, err := c.doSignedRequest(ctx, http.MethodGet, "/portfolio/balance", nil)
	if err != nil {
		return KalshiBalance{}, fmt.Errorf("kalshi: get balance: %w", err)
	}

	var resp KalshiBalance
	if err := json.Unmarshal(body, &resp); err != nil {
		return KalshiBalance{}, fmt.Errorf("kalshi: decode balance: %w", err)
	}

	return resp, nil
}

// GetPositions returns one page of the account's market positions. Pass the
// cursor from the previous page to continue; an empty returned cursor means
// the last page.
func (c *Client) GetPositions(ctx context.Context, cursor string) (PositionsPage, error) {
	path := "/portfolio/positions"
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return PositionsPage{}, fmt.Errorf("kalshi: get positions: %w", err)
	}

	var resp PositionsPage
	if err := json.Unmarshal(body, &resp); err != nil {
		return PositionsPage{}, fmt.Errorf("kalshi: decode positions: %w", err)
	}

	return resp, nil
}

// GetOrders returns one page of the account's resting orders, following the
// same cursor protocol as GetPositions.
func (c *Client) GetOrders(ctx context.Context, cursor string) (OrdersPage, error) {
	path := "/portfolio/orders"
	params := url.Values{}
	params.Set("status", "resting")
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	path += "?" + params.Encode()

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return OrdersPage{}, fmt.Errorf("kalshi: get orders: %w", err)
	}

	var resp OrdersPage
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrdersPage{}, fmt.Errorf("kalshi: decode orders: %w", err)
	}

	return resp, nil
}

// GetMarketsByTickers returns metadata for a batch of market tickers.
// Callers chunk the batch to respect the upstream ceiling.
func (c *Client) GetMarketsByTickers(ctx context.Context, tickers []string) ([]KalshiMarket, error) {
	params := url.Values{}
	params.Set("tickers", strings.Join(tickers, ","))

	body, err := c.doSignedRequest(ctx, http.MethodGet, "/markets?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get markets by tickers: %w", err)
	}

	var resp struct {
		Markets []KalshiMarket `json:"markets"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode markets: %w", err)
	}

	return resp.Markets, nil
}

// GetMarketCandles returns candlesticks for a market over [from, to] at the
// given interval in minutes.
func (c *Client) GetMarketCandles(ctx context.Context, ticker string, from, to time.Time, intervalMinutes int) ([]KalshiCandle, error) {
	params := url.Values{}
	params.Set("start_ts", strconv.FormatInt(from.Unix(), 10))
	params.Set("end_ts", strconv.FormatInt(to.Unix(), 10))
	params.Set("period_interval", strconv.Itoa(intervalMinutes))

	path := fmt.Sprintf("/markets/%s/candlesticks?%s", url.PathEscape(ticker), params.Encode())

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get candles %s: %w", ticker, err)
	}

	var resp struct {
		Candles []KalshiCandle `json:"candlesticks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode candles: %w", err)
	}

	return resp.Candles, nil
}

// PlaceOrder submits a new order on the Kalshi exchange.
func (c *Client) PlaceOrder(ctx context.Context, order KalshiOrder) (KalshiOrderResponse, error) {
	body, err := c.doSignedRequest(ctx, http.MethodPost, "/portfolio/orders", order)
	if err != nil {
		return KalshiOrderResponse{}, fmt.Errorf("kalshi: place order: %w", err)
	}

	var resp KalshiOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return KalshiOrderResponse{}, fmt.Errorf("kalshi: decode order response: %w", err)
	}

	if resp.Order.Status == "canceled" {
		return resp, fmt.Errorf("kalshi: order was immediately cancelled")
	}

	return resp, nil
}

// CancelOrder cancels an existing order by its ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/portfolio/orders/%s", url.PathEscape(orderID))

	_, err := c.doSignedRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("kalshi: cancel order %s: %w", orderID, err)
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doSignedRequest builds, signs (RSA), sends, and reads an HTTP request
// against the Kalshi API.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	// Sign the request with RSA.
	if err := c.signRequest(req, method, path); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
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

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// signRequest adds RSA authentication headers to the HTTP request.
// Kalshi uses RSA-PSS-SHA256 signatures over the timestamp + method + path
// message string. The path is signed without its query string.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	if c.privateKey == nil {
		// If no RSA key is set, we cannot sign. This is a configuration error.
		return fmt.Errorf("kalshi: RSA private key not configured")
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	signPath := path
	if i := strings.IndexByte(signPath, '?'); i >= 0 {
		signPath = signPath[:i]
	}

	// The message to sign is: timestamp + method + path
	message := ts + method + signPath

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	encodedSig := base64.StdEncoding.EncodeToString(signature)

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", encodedSig)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr KalshiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("kalshi: %w: %s (%s)", domain.ErrNotFound, apiErr.Message, apiErr.Code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("kalshi: %w: %s (%s)", domain.ErrUnauthorized, apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("kalshi: %w: %s (%s)", domain.ErrRateLimited, apiErr.Message, apiErr.Code)
	case http.StatusBadRequest:
		return fmt.Errorf("kalshi: bad request: %s (%s)", apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("kalshi: HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}
