package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tummybutters/marketmirror/internal/domain"
)

// SyncRunStore implements domain.SyncRunStore using PostgreSQL.
type SyncRunStore struct {
	pool *pgxpool.Pool
}

// NewSyncRunStore creates a SyncRunStore backed by the given connection pool.
func NewSyncRunStore(pool *pgxpool.Pool) *SyncRunStore {
	return &SyncRunStore{pool: pool}
}

const runSelectCols = `id, user_id, provider, status, started_at, finished_at, error, meta`

func scanRun(row pgx.Row) (domain.SyncRun, error) {
	var r domain.SyncRun
	var provider, status string

	err := row.Scan(&r.ID, &r.UserID, &provider, &status,
		&r.StartedAt, &r.FinishedAt, &r.Error, &r.Meta)
	if err != nil {
		return domain.SyncRun{}, err
	}
	r.Provider = domain.Provider(provider)
	r.Status = domain.SyncStatus(status)
	return r, nil
}

// StartRun records a new run with status running.
func (s *SyncRunStore) StartRun(ctx context.Context, run domain.SyncRun) error {
	const query = `
		INSERT INTO sync_runs (id, user_id, provider, status, started_at, finished_at, error, meta)
		VALUES ($1, $2, $3, 'running', $4, NULL, NULL, $5)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.UserID, string(run.Provider), run.StartedAt, run.Meta)
	if err != nil {
		return fmt.Errorf("postgres: start run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun applies the single terminal mutation of a run. Only rows still
// in status running are touched; finishing an already-finished run returns
// domain.ErrNotFound.
func (s *SyncRunStore) FinishRun(ctx context.Context, id string, status domain.SyncStatus, errMsg *string, meta map[string]any) error {
	if status != domain.SyncStatusSuccess && status != domain.SyncStatusError {
		return fmt.Errorf("postgres: finish run %s: %q is not a terminal status", id, status)
	}

	const query = `
		UPDATE sync_runs SET
			status      = $2,
			finished_at = NOW(),
			error       = $3,
			meta        = COALESCE($4, meta)
		WHERE id = $1 AND status = 'running'`

	tag, err := s.pool.Exec(ctx, query, id, string(status), errMsg, meta)
	if err != nil {
		return fmt.Errorf("postgres: finish run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *SyncRunStore) GetRun(ctx context.Context, id string) (domain.SyncRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runSelectCols+` FROM sync_runs WHERE id = $1`, id)

	r, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SyncRun{}, domain.ErrNotFound
		}
		return domain.SyncRun{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the most recently started run for (user, provider).
func (s *SyncRunStore) LatestRun(ctx context.Context, userID string, provider domain.Provider) (domain.SyncRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runSelectCols+` FROM sync_runs
		 WHERE user_id = $1 AND provider = $2
		 ORDER BY started_at DESC LIMIT 1`, userID, string(provider))

	r, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SyncRun{}, domain.ErrNotFound
		}
		return domain.SyncRun{}, fmt.Errorf("postgres: latest run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs for a user, newest first, with pagination.
func (s *SyncRunStore) ListRuns(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.SyncRun, error) {
	query := `SELECT ` + runSelectCols + ` FROM sync_runs WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND started_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND started_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY started_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// MarkStale flips runs stuck in running since before cutoff to error.
func (s *SyncRunStore) MarkStale(ctx context.Context, cutoff time.Time, errMsg string) (int64, error) {
	const query = `
		UPDATE sync_runs SET
			status      = 'error',
			finished_at = NOW(),
			error       = $2
		WHERE status = 'running' AND started_at < $1`

	tag, err := s.pool.Exec(ctx, query, cutoff, errMsg)
	if err != nil {
		return 0, fmt.Errorf("postgres: mark stale runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.SyncRunStore = (*SyncRunStore)(nil)
