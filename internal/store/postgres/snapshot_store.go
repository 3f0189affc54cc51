package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. All
// writes are insert-only; snapshot rows are never updated or deleted.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// AppendBalanceSnapshots inserts one balance snapshot batch.
func (s *SnapshotStore) AppendBalanceSnapshots(ctx context.Context, snaps []domain.BalanceSnapshot) error {
	const query = `
		INSERT INTO balance_snapshots (run_id, user_id, provider, asset_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for i := range snaps {
		sn := &snaps[i]
		if _, err := s.pool.Exec(ctx, query,
			sn.RunID, sn.UserID, string(sn.Provider), sn.AssetID, sn.Amount, sn.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: append balance snapshot: %w", err)
		}
	}
	return nil
}

// AppendPositionSnapshots inserts one position snapshot batch.
func (s *SnapshotStore) AppendPositionSnapshots(ctx context.Context, snaps []domain.PositionSnapshot) error {
	const query = `
		INSERT INTO position_snapshots (run_id, user_id, provider, token_id, shares, current_price, value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i := range snaps {
		sn := &snaps[i]
		if _, err := s.pool.Exec(ctx, query,
			sn.RunID, sn.UserID, string(sn.Provider), sn.TokenID,
			sn.Shares, sn.CurrentPrice, sn.Value, sn.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: append position snapshot: %w", err)
		}
	}
	return nil
}

// AppendPortfolioSnapshot inserts the valuation captured for one run.
func (s *SnapshotStore) AppendPortfolioSnapshot(ctx context.Context, snap domain.PortfolioSnapshot) error {
	const query = `
		INSERT INTO portfolio_snapshots (run_id, user_id, provider, cash_balance, positions_value, total_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		snap.RunID, snap.UserID, string(snap.Provider),
		snap.CashBalance, snap.PositionsValue, snap.TotalValue, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append portfolio snapshot: %w", err)
	}
	return nil
}

// ListPortfolioSnapshots returns portfolio snapshots newest first.
func (s *SnapshotStore) ListPortfolioSnapshots(ctx context.Context, userID string, provider domain.Provider, opts domain.ListOpts) ([]domain.PortfolioSnapshot, error) {
	query := `
		SELECT run_id, user_id, provider, cash_balance, positions_value, total_value, created_at
		FROM portfolio_snapshots
		WHERE user_id = $1 AND provider = $2`
	args := []any{userID, string(provider)}
	argIdx := 3

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list portfolio snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.PortfolioSnapshot
	for rows.Next() {
		var sn domain.PortfolioSnapshot
		var prov string
		if err := rows.Scan(&sn.RunID, &sn.UserID, &prov,
			&sn.CashBalance, &sn.PositionsValue, &sn.TotalValue, &sn.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan portfolio snapshot: %w", err)
		}
		sn.Provider = domain.Provider(prov)
		snaps = append(snaps, sn)
	}
	return snaps, rows.Err()
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
