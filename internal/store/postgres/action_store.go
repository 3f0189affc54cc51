package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// ActionStore implements domain.ActionStore using PostgreSQL.
type ActionStore struct {
	pool *pgxpool.Pool
}

// NewActionStore creates an ActionStore backed by the given connection pool.
func NewActionStore(pool *pgxpool.Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

// Append inserts one trading action audit record.
func (s *ActionStore) Append(ctx context.Context, a domain.TradingAction) error {
	const query = `
		INSERT INTO trading_actions (id, user_id, provider, action_type, request, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.UserID, string(a.Provider), string(a.Type),
		rawOrNil(a.Request), rawOrNil(a.Response), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trading action %s: %w", a.ID, err)
	}
	return nil
}

// ListRecent returns the newest trading actions for (user, provider).
func (s *ActionStore) ListRecent(ctx context.Context, userID string, provider domain.Provider, limit int) ([]domain.TradingAction, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, provider, action_type, request, response, created_at
		 FROM trading_actions
		 WHERE user_id = $1 AND provider = $2
		 ORDER BY created_at DESC
		 LIMIT $3`, userID, string(provider), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trading actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.TradingAction
	for rows.Next() {
		var a domain.TradingAction
		var prov, actionType string
		if err := rows.Scan(&a.ID, &a.UserID, &prov, &actionType, &a.Request, &a.Response, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trading action: %w", err)
		}
		a.Provider = domain.Provider(prov)
		a.Type = domain.ActionType(actionType)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Compile-time interface check.
var _ domain.ActionStore = (*ActionStore)(nil)
