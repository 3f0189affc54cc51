package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tummybutters/marketmirror/internal/crypto"
	"github.com/tummybutters/marketmirror/internal/domain"
)

// CredentialStore implements domain.CredentialStore over the
// provider_credentials table. Credentials are stored as a sealed
// (PBKDF2 + AES-256-GCM) JSON blob and decrypted per load with the
// service-level vault password; domain.ErrNotConnected means the user
// never connected that provider.
type CredentialStore struct {
	pool     *pgxpool.Pool
	password string
}

// NewCredentialStore creates a CredentialStore. password is the vault
// password used to seal and open credential blobs.
func NewCredentialStore(pool *pgxpool.Pool, password string) *CredentialStore {
	return &CredentialStore{pool: pool, password: password}
}

// Polymarket returns the user's Polymarket credentials.
func (s *CredentialStore) Polymarket(ctx context.Context, userID string) (domain.PolymarketCredentials, error) {
	var creds domain.PolymarketCredentials
	if err := s.load(ctx, userID, domain.ProviderPolymarket, &creds); err != nil {
		return domain.PolymarketCredentials{}, err
	}
	return creds, nil
}

// Kalshi returns the user's Kalshi credentials.
func (s *CredentialStore) Kalshi(ctx context.Context, userID string) (domain.KalshiCredentials, error) {
	var creds domain.KalshiCredentials
	if err := s.load(ctx, userID, domain.ProviderKalshi, &creds); err != nil {
		return domain.KalshiCredentials{}, err
	}
	return creds, nil
}

// Save seals and upserts a credential set for (user, provider).
func (s *CredentialStore) Save(ctx context.Context, userID string, provider domain.Provider, creds any) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("postgres: marshal credentials: %w", err)
	}

	sealed, err := crypto.Seal(plain, s.password)
	if err != nil {
		return fmt.Errorf("postgres: seal credentials: %w", err)
	}

	const query = `
		INSERT INTO provider_credentials (user_id, provider, sealed, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			sealed     = EXCLUDED.sealed,
			updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, userID, string(provider), sealed); err != nil {
		return fmt.Errorf("postgres: save credentials: %w", err)
	}
	return nil
}

// Delete removes a credential set, disconnecting the provider.
func (s *CredentialStore) Delete(ctx context.Context, userID string, provider domain.Provider) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM provider_credentials WHERE user_id = $1 AND provider = $2`,
		userID, string(provider))
	if err != nil {
		return fmt.Errorf("postgres: delete credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotConnected
	}
	return nil
}

func (s *CredentialStore) load(ctx context.Context, userID string, provider domain.Provider, out any) error {
	var sealed []byte
	err := s.pool.QueryRow(ctx,
		`SELECT sealed FROM provider_credentials WHERE user_id = $1 AND provider = $2`,
		userID, string(provider)).Scan(&sealed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrNotConnected
		}
		return fmt.Errorf("postgres: load credentials: %w", err)
	}

	plain, err := crypto.Open(sealed, s.password)
	if err != nil {
		return fmt.Errorf("postgres: open credentials: %w", err)
	}

	if err := json.Unmarshal(plain, out); err != nil {
		return fmt.Errorf("postgres: decode credentials: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CredentialStore = (*CredentialStore)(nil)
