package domain

import "context"

// PolymarketCredentials holds what a Polymarket session needs: the
// wallet's signing key (hex) plus the derived CLOB API credentials.
type PolymarketCredentials struct {
	PrivateKey    string
	ProxyAddress  string
	APIKey        string
	APISecret     string
	APIPassphrase string
}

// KalshiCredentials holds a Kalshi API key id and its RSA private key in
// PEM form.
type KalshiCredentials struct {
	APIKeyID      string
	PrivateKeyPEM []byte
}

// CredentialStore returns decrypted provider credentials for a user.
// ErrNotFound means the user never connected that provider; callers treat
// it as "not connected", never as a fatal sync error. Storage and
// encryption mechanics live behind this interface.
type CredentialStore interface {
	Polymarket(ctx context.Context, userID string) (PolymarketCredentials, error)
	Kalshi(ctx context.Context, userID string) (KalshiCredentials, error)
}
