package sync

import (
	"context"
	"fmt"

	"github.com/tummybutters/marketmirror/internal/crypto"
	"github.com/tummybutters/marketmirror/internal/domain"
	"github.com/tummybutters/marketmirror/internal/platform/kalshi"
	"github.com/tummybutters/marketmirror/internal/platform/polymarket"
)

// PolymarketDataAPI is the slice of the data API the orchestrator needs.
type PolymarketDataAPI interface {
	GetBalances(ctx context.Context, address string) ([]polymarket.APIBalance, error)
}

// PolymarketClobAPI is the slice of the CLOB API the orchestrator and the
// order pass-through need.
type PolymarketClobAPI interface {
	GetOpenOrders(ctx context.Context) ([]polymarket.APIOpenOrder, error)
	PostOrder(ctx context.Context, order crypto.OrderPayload, signature, orderType string) (polymarket.APIOrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	Signer() *crypto.Signer
}

// PolymarketSession bundles a user's authenticated Polymarket clients with
// the wallet address account endpoints are keyed by.
type PolymarketSession struct {
	Address string
	Data    PolymarketDataAPI
	Clob    PolymarketClobAPI
}

// KalshiAccount is the slice of the Kalshi API the orchestrator and the
// order pass-through need.
type KalshiAccount interface {
	GetBalance(ctx context.Context) (kalshi.KalshiBalance, error)
	GetPositions(ctx context.Context, cursor string) (kalshi.PositionsPage, error)
	GetOrders(ctx context.Context, cursor string) (kalshi.OrdersPage, error)
	PlaceOrder(ctx context.Context, order kalshi.KalshiOrder) (kalshi.KalshiOrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// SessionFactory builds per-user authenticated provider sessions from
// stored credentials. domain.ErrNotConnected means the user never
// connected the provider.
type SessionFactory interface {
	Polymarket(ctx context.Context, userID string) (*PolymarketSession, error)
	Kalshi(ctx context.Context, userID string) (KalshiAccount, error)
}

// ClientFactoryConfig carries the provider endpoints used when building
// sessions.
type ClientFactoryConfig struct {
	DataAPIURL    string
	ClobAPIURL    string
	KalshiBaseURL string
	ChainID       int
}

// ClientFactory is the production SessionFactory: it loads sealed
// credentials and constructs signed HTTP clients around them.
type ClientFactory struct {
	creds domain.CredentialStore
	cfg   ClientFactoryConfig
}

// NewClientFactory creates a ClientFactory.
func NewClientFactory(creds domain.CredentialStore, cfg ClientFactoryConfig) *ClientFactory {
	return &ClientFactory{creds: creds, cfg: cfg}
}

// Polymarket builds a session from the user's stored wallet key and CLOB
// API credentials. When no API key was stored, one is derived via the
// ClobAuth flow.
func (f *ClientFactory) Polymarket(ctx context.Context, userID string) (*PolymarketSession, error) {
	c, err := f.creds.Polymarket(ctx, userID)
	if err != nil {
		return nil, err
	}

	signer, err := crypto.NewSigner(c.PrivateKey, f.cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("sync: build polymarket signer: %w", err)
	}

	var auth *crypto.HMACAuth
	if c.APIKey != "" {
		auth = &crypto.HMACAuth{Key: c.APIKey, Secret: c.APISecret, Passphrase: c.APIPassphrase}
	}
	clob := polymarket.NewClobClient(f.cfg.ClobAPIURL, signer, auth)
	if auth == nil {
		if err := clob.DeriveAPIKey(ctx); err != nil {
			return nil, fmt.Errorf("sync: derive polymarket api key: %w", err)
		}
	}

	address := c.ProxyAddress
	if address == "" {
		address = signer.Address().Hex()
	}

	return &PolymarketSession{
		Address: address,
		Data:    polymarket.NewDataClient(f.cfg.DataAPIURL),
		Clob:    clob,
	}, nil
}

// Kalshi builds an authenticated Kalshi client from the stored API key id
// and RSA private key.
func (f *ClientFactory) Kalshi(ctx context.Context, userID string) (KalshiAccount, error) {
	c, err := f.creds.Kalshi(ctx, userID)
	if err != nil {
		return nil, err
	}

	client := kalshi.NewClient(f.cfg.KalshiBaseURL, c.APIKeyID)
	if err := client.SetRSAPrivateKey(c.PrivateKeyPEM); err != nil {
		return nil, fmt.Errorf("sync: load kalshi private key: %w", err)
	}
	return client, nil
}

var _ SessionFactory = (*ClientFactory)(nil)
