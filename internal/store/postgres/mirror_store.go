package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// MirrorStore implements domain.MirrorStore using PostgreSQL.
//
// The replace methods delete every row for (user, provider) and insert the
// fresh set inside one transaction, so readers never observe a mix of
// stale and fresh rows and entities closed upstream vanish.
type MirrorStore struct {
	pool *pgxpool.Pool
}

// NewMirrorStore creates a MirrorStore backed by the given connection pool.
func NewMirrorStore(pool *pgxpool.Pool) *MirrorStore {
	return &MirrorStore{pool: pool}
}

// ReplacePositions atomically replaces all current positions for the key.
func (s *MirrorStore) ReplacePositions(ctx context.Context, userID string, provider domain.Provider, positions []domain.Position) error {
	return s.inTx(ctx, "replace positions", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM positions_current WHERE user_id = $1 AND provider = $2`,
			userID, string(provider))
		if err != nil {
			return err
		}

		const insert = `
			INSERT INTO positions_current (
				user_id, provider, token_id, market_id, question, outcome,
				shares, avg_price, current_price, value,
				realized_pnl, unrealized_pnl, raw, synced_at
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7, $8, $9, $10,
				$11, $12, $13, $14
			)`
		for i := range positions {
			p := &positions[i]
			if _, err := tx.Exec(ctx, insert,
				userID, string(provider), p.TokenID, p.MarketID, p.Question, p.Outcome,
				p.Shares, p.AvgPrice, p.CurrentPrice, p.Value,
				p.RealizedPnL, p.UnrealizedPnL, rawOrNil(p.Raw), p.SyncedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceOrders atomically replaces all current resting orders for the key.
func (s *MirrorStore) ReplaceOrders(ctx context.Context, userID string, provider domain.Provider, orders []domain.Order) error {
	return s.inTx(ctx, "replace orders", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM orders_current WHERE user_id = $1 AND provider = $2`,
			userID, string(provider))
		if err != nil {
			return err
		}

		const insert = `
			INSERT INTO orders_current (
				user_id, provider, order_id, token_id, market_id, side,
				price, size, filled_size, status, created_at, last_seen_at, raw
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7, $8, $9, $10, $11, $12, $13
			)`
		for i := range orders {
			o := &orders[i]
			if _, err := tx.Exec(ctx, insert,
				userID, string(provider), o.OrderID, o.TokenID, o.MarketID, string(o.Side),
				o.Price, o.Size, o.FilledSize, o.Status, o.CreatedAt, o.LastSeenAt, rawOrNil(o.Raw),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertBalances overwrites current balances by (user, provider, asset).
func (s *MirrorStore) UpsertBalances(ctx context.Context, balances []domain.Balance) error {
	const query = `
		INSERT INTO balances_current (
			user_id, provider, asset_id, symbol, amount, raw, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, provider, asset_id) DO UPDATE SET
			symbol    = EXCLUDED.symbol,
			amount    = EXCLUDED.amount,
			raw       = EXCLUDED.raw,
			synced_at = EXCLUDED.synced_at`

	for i := range balances {
		b := &balances[i]
		if _, err := s.pool.Exec(ctx, query,
			b.UserID, string(b.Provider), b.AssetID, b.Symbol, b.Amount, rawOrNil(b.Raw), b.SyncedAt,
		); err != nil {
			return fmt.Errorf("postgres: upsert balance %s: %w", b.AssetID, err)
		}
	}
	return nil
}

// GetBalances returns the current balances for (user, provider).
func (s *MirrorStore) GetBalances(ctx context.Context, userID string, provider domain.Provider) ([]domain.Balance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, provider, asset_id, symbol, amount, raw, synced_at
		 FROM balances_current
		 WHERE user_id = $1 AND provider = $2
		 ORDER BY asset_id`, userID, string(provider))
	if err != nil {
		return nil, fmt.Errorf("postgres: get balances: %w", err)
	}
	defer rows.Close()

	var balances []domain.Balance
	for rows.Next() {
		var b domain.Balance
		var provider string
		if err := rows.Scan(&b.UserID, &provider, &b.AssetID, &b.Symbol, &b.Amount, &b.Raw, &b.SyncedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		b.Provider = domain.Provider(provider)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// GetPositions returns the current positions for (user, provider), most
// valuable first.
func (s *MirrorStore) GetPositions(ctx context.Context, userID string, provider domain.Provider) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, provider, token_id, market_id, question, outcome,
		        shares, avg_price, current_price, value,
		        realized_pnl, unrealized_pnl, raw, synced_at
		 FROM positions_current
		 WHERE user_id = $1 AND provider = $2
		 ORDER BY value DESC NULLS LAST`, userID, string(provider))
	if err != nil {
		return nil, fmt.Errorf("postgres: get positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var prov string
		if err := rows.Scan(
			&p.UserID, &prov, &p.TokenID, &p.MarketID, &p.Question, &p.Outcome,
			&p.Shares, &p.AvgPrice, &p.CurrentPrice, &p.Value,
			&p.RealizedPnL, &p.UnrealizedPnL, &p.Raw, &p.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.Provider = domain.Provider(prov)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetOrders returns the current resting orders for (user, provider).
func (s *MirrorStore) GetOrders(ctx context.Context, userID string, provider domain.Provider) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, provider, order_id, token_id, market_id, side,
		        price, size, filled_size, status, created_at, last_seen_at, raw
		 FROM orders_current
		 WHERE user_id = $1 AND provider = $2
		 ORDER BY created_at DESC NULLS LAST`, userID, string(provider))
	if err != nil {
		return nil, fmt.Errorf("postgres: get orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var prov, side string
		if err := rows.Scan(
			&o.UserID, &prov, &o.OrderID, &o.TokenID, &o.MarketID, &side,
			&o.Price, &o.Size, &o.FilledSize, &o.Status, &o.CreatedAt, &o.LastSeenAt, &o.Raw,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		o.Provider = domain.Provider(prov)
		o.Side = domain.OrderSide(side)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *MirrorStore) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin %s: %w", op, err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("postgres: %s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit %s: %w", op, err)
	}
	return nil
}

// rawOrNil maps an empty raw payload to SQL NULL instead of ''::jsonb.
func rawOrNil(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// Compile-time interface check.
var _ domain.MirrorStore = (*MirrorStore)(nil)
