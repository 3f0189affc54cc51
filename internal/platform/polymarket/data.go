package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DataClient is the REST client for the Polymarket data API, which serves
// per-wallet account state. Balances cover both the USDC settlement asset
// and conditional tokens; a conditional-token balance is an open position.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new data API client.
//
// baseURL is the data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetBalances returns all asset balances for the given wallet address in a
// single call.
func (d *DataClient) GetBalances(ctx context.Context, address string) ([]APIBalance, error) {
	params := url.Values{}
	params.Set("user", address)

	body, err := d.doGet(ctx, "/balances?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get balances: %w", err)
	}

	var balances []APIBalance
	if err := json.Unmarshal(body, &balances); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode balances: %w", err)
	}

	return balances, nil
}

func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
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
