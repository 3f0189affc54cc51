// Package sync orchestrates one full mirror refresh per provider: fetch
// account state, resolve market metadata, normalize, and reconcile the
// local tables under an audited sync run.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tummybutters/marketmirror/internal/domain"
	"github.com/tummybutters/marketmirror/internal/markets"
	"github.com/tummybutters/marketmirror/internal/platform/kalshi"
	"github.com/tummybutters/marketmirror/internal/platform/polymarket"
)

// maxPages caps cursor pagination so a provider bug repeating cursors
// cannot loop a sync forever.
const maxPages = 10

// OrchestratorConfig carries the sync tunables.
type OrchestratorConfig struct {
	// LeaseTTL bounds how long a crashed sync can hold its lease.
	LeaseTTL time.Duration
	// RateLimit / RateWindow throttle manual sync triggers per
	// (user, provider).
	RateLimit  int
	RateWindow time.Duration
}

// Orchestrator runs the fetch-normalize-reconcile cycle. All external
// effects go through the injected interfaces.
type Orchestrator struct {
	sessions SessionFactory
	runs     domain.SyncRunStore
	mirror   domain.MirrorStore
	snaps    domain.SnapshotStore
	resolver *markets.Resolver
	pmSource markets.Source
	kcSource markets.Source
	locks    domain.LockManager
	limiter  domain.SyncLimiter
	archiver domain.PayloadArchiver
	cfg      OrchestratorConfig
	logger   *slog.Logger

	now func() time.Time
}

// NewOrchestrator creates an Orchestrator. archiver may be nil to disable
// raw payload retention.
func NewOrchestrator(
	sessions SessionFactory,
	runs domain.SyncRunStore,
	mirror domain.MirrorStore,
	snaps domain.SnapshotStore,
	resolver *markets.Resolver,
	pmSource markets.Source,
	kcSource markets.Source,
	locks domain.LockManager,
	limiter domain.SyncLimiter,
	archiver domain.PayloadArchiver,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 2 * time.Minute
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 6
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &Orchestrator{
		sessions: sessions,
		runs:     runs,
		mirror:   mirror,
		snaps:    snaps,
		resolver: resolver,
		pmSource: pmSource,
		kcSource: kcSource,
		locks:    locks,
		limiter:  limiter,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SyncProvider performs one sync against one provider. The run record is
// written with status running before any provider call; on any failure the
// run is finished with status error and the mirror tables keep their
// previous contents. Returns domain.ErrNotConnected without opening a run
// when the user never connected the provider.
func (o *Orchestrator) SyncProvider(ctx context.Context, userID string, provider domain.Provider) (domain.SyncRun, error) {
	var fetch func(ctx context.Context, runID string) (normalized, error)

	switch provider {
	case domain.ProviderPolymarket:
		sess, err := o.sessions.Polymarket(ctx, userID)
		if err != nil {
			return domain.SyncRun{}, fmt.Errorf("sync: polymarket session for %s: %w", userID, err)
		}
		fetch = func(ctx context.Context, runID string) (normalized, error) {
			return o.fetchPolymarket(ctx, sess, userID, runID)
		}
	case domain.ProviderKalshi:
		acct, err := o.sessions.Kalshi(ctx, userID)
		if err != nil {
			return domain.SyncRun{}, fmt.Errorf("sync: kalshi session for %s: %w", userID, err)
		}
		fetch = func(ctx context.Context, runID string) (normalized, error) {
			return o.fetchKalshi(ctx, acct, userID, runID)
		}
	default:
		return domain.SyncRun{}, fmt.Errorf("sync: unsupported provider %q", provider)
	}

	run := domain.SyncRun{
		ID:        uuid.NewString(),
		UserID:    userID,
		Provider:  provider,
		Status:    domain.SyncStatusRunning,
		StartedAt: o.now().UTC(),
	}
	if err := o.runs.StartRun(ctx, run); err != nil {
		return run, fmt.Errorf("sync: start run: %w", err)
	}

	o.logger.InfoContext(ctx, "sync started",
		slog.String("run_id", run.ID),
		slog.String("user_id", userID),
		slog.String("provider", string(provider)),
	)

	n, err := fetch(ctx, run.ID)
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	meta, err := o.reconcile(ctx, run, n)
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	if err := o.runs.FinishRun(ctx, run.ID, domain.SyncStatusSuccess, nil, meta); err != nil {
		return run, fmt.Errorf("sync: finish run: %w", err)
	}
	finished := o.now().UTC()
	run.Status = domain.SyncStatusSuccess
	run.FinishedAt = &finished
	run.Meta = meta

	o.logger.InfoContext(ctx, "sync finished",
		slog.String("run_id", run.ID),
		slog.String("provider", string(provider)),
		slog.Any("meta", meta),
	)
	return run, nil
}

// failRun applies the terminal error mutation and returns the causal error.
func (o *Orchestrator) failRun(ctx context.Context, run domain.SyncRun, cause error) (domain.SyncRun, error) {
	msg := cause.Error()
	if err := o.runs.FinishRun(ctx, run.ID, domain.SyncStatusError, &msg, nil); err != nil {
		o.logger.ErrorContext(ctx, "finish run failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
	finished := o.now().UTC()
	run.Status = domain.SyncStatusError
	run.FinishedAt = &finished
	run.Error = &msg

	o.logger.ErrorContext(ctx, "sync failed",
		slog.String("run_id", run.ID),
		slog.String("provider", string(run.Provider)),
		slog.String("error", msg),
	)
	return run, cause
}

// fetchPolymarket pulls balances and open orders concurrently, resolves
// metadata for the held tokens, and normalizes. An orders fetch failure
// degrades to an empty list; balances are the source of truth for
// positions and stay fatal.
func (o *Orchestrator) fetchPolymarket(ctx context.Context, sess *PolymarketSession, userID, runID string) (normalized, error) {
	var (
		balances []polymarket.APIBalance
		orders   []polymarket.APIOpenOrder
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := sess.Data.GetBalances(gctx, sess.Address)
		if err != nil {
			return fmt.Errorf("fetch balances: %w", err)
		}
		balances = b
		return nil
	})
	g.Go(func() error {
		ord, err := sess.Clob.GetOpenOrders(gctx)
		if err != nil {
			o.logger.WarnContext(gctx, "open orders fetch failed, mirroring empty",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		orders = ord
		return nil
	})
	if err := g.Wait(); err != nil {
		return normalized{}, err
	}

	o.archive(ctx, runID, "balances", balances)
	o.archive(ctx, runID, "orders", orders)

	var tokenIDs []string
	for i := range balances {
		b := &balances[i]
		amount := b.Amount()
		if amount == nil || *amount <= 0 {
			continue
		}
		if strings.EqualFold(b.Symbol, "USDC") {
			continue
		}
		tokenIDs = append(tokenIDs, b.AssetID)
	}
	meta := o.resolver.Resolve(ctx, o.pmSource, tokenIDs)

	return normalizePolymarket(userID, balances, orders, meta, o.now().UTC()), nil
}

// fetchKalshi pulls balance, positions, and resting orders concurrently
// (positions and orders paginated by cursor), resolves ticker metadata,
// and normalizes. An orders fetch failure degrades to an empty list.
func (o *Orchestrator) fetchKalshi(ctx context.Context, acct KalshiAccount, userID, runID string) (normalized, error) {
	var (
		balance   kalshi.KalshiBalance
		positions []kalshi.KalshiPosition
		orders    []kalshi.KalshiRestingOrder
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := acct.GetBalance(gctx)
		if err != nil {
			return fmt.Errorf("fetch balance: %w", err)
		}
		balance = b
		return nil
	})
	g.Go(func() error {
		p, err := fetchKalshiPositions(gctx, acct)
		if err != nil {
			return fmt.Errorf("fetch positions: %w", err)
		}
		positions = p
		return nil
	})
	g.Go(func() error {
		ord, err := fetchKalshiOrders(gctx, acct)
		if err != nil {
			o.logger.WarnContext(gctx, "resting orders fetch failed, mirroring empty",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		orders = ord
		return nil
	})
	if err := g.Wait(); err != nil {
		return normalized{}, err
	}

	o.archive(ctx, runID, "balance", balance)
	o.archive(ctx, runID, "positions", positions)
	o.archive(ctx, runID, "orders", orders)

	var tickers []string
	for i := range positions {
		if positions[i].Position != 0 {
			tickers = append(tickers, positions[i].Ticker)
		}
	}
	meta := o.resolver.Resolve(ctx, o.kcSource, tickers)

	return normalizeKalshi(userID, balance, positions, orders, meta, o.now().UTC()), nil
}

func fetchKalshiPositions(ctx context.Context, acct KalshiAccount) ([]kalshi.KalshiPosition, error) {
	var out []kalshi.KalshiPosition
	cursor := ""
	for page := 0; page < maxPages; page++ {
		pg, err := acct.GetPositions(ctx, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, pg.Positions...)
		if pg.Cursor == "" {
			break
		}
		cursor = pg.Cursor
	}
	return out, nil
}

func fetchKalshiOrders(ctx context.Context, acct KalshiAccount) ([]kalshi.KalshiRestingOrder, error) {
	var out []kalshi.KalshiRestingOrder
	cursor := ""
	for page := 0; page < maxPages; page++ {
		pg, err := acct.GetOrders(ctx, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, pg.Orders...)
		if pg.Cursor == "" {
			break
		}
		cursor = pg.Cursor
	}
	return out, nil
}

// reconcile writes the normalized state: replace positions and orders,
// upsert balances, then append the three snapshot kinds plus the
// portfolio valuation. Returns the run meta on success.
func (o *Orchestrator) reconcile(ctx context.Context, run domain.SyncRun, n normalized) (map[string]any, error) {
	if err := o.mirror.ReplacePositions(ctx, run.UserID, run.Provider, n.Positions); err != nil {
		return nil, fmt.Errorf("replace positions: %w", err)
	}
	if err := o.mirror.ReplaceOrders(ctx, run.UserID, run.Provider, n.Orders); err != nil {
		return nil, fmt.Errorf("replace orders: %w", err)
	}
	if err := o.mirror.UpsertBalances(ctx, n.Balances); err != nil {
		return nil, fmt.Errorf("upsert balances: %w", err)
	}

	now := o.now().UTC()

	balSnaps := make([]domain.BalanceSnapshot, 0, len(n.Balances))
	for i := range n.Balances {
		b := &n.Balances[i]
		balSnaps = append(balSnaps, domain.BalanceSnapshot{
			RunID:     run.ID,
			UserID:    b.UserID,
			Provider:  b.Provider,
			AssetID:   b.AssetID,
			Amount:    b.Amount,
			CreatedAt: now,
		})
	}
	if err := o.snaps.AppendBalanceSnapshots(ctx, balSnaps); err != nil {
		return nil, fmt.Errorf("append balance snapshots: %w", err)
	}

	posSnaps := make([]domain.PositionSnapshot, 0, len(n.Positions))
	for i := range n.Positions {
		p := &n.Positions[i]
		posSnaps = append(posSnaps, domain.PositionSnapshot{
			RunID:        run.ID,
			UserID:       p.UserID,
			Provider:     p.Provider,
			TokenID:      p.TokenID,
			Shares:       p.Shares,
			CurrentPrice: p.CurrentPrice,
			Value:        p.Value,
			CreatedAt:    now,
		})
	}
	if err := o.snaps.AppendPositionSnapshots(ctx, posSnaps); err != nil {
		return nil, fmt.Errorf("append position snapshots: %w", err)
	}

	posValue := positionsValue(n.Positions)
	if err := o.snaps.AppendPortfolioSnapshot(ctx, domain.PortfolioSnapshot{
		RunID:          run.ID,
		UserID:         run.UserID,
		Provider:       run.Provider,
		CashBalance:    n.Cash,
		PositionsValue: posValue,
		TotalValue:     n.Cash + posValue,
		CreatedAt:      now,
	}); err != nil {
		return nil, fmt.Errorf("append portfolio snapshot: %w", err)
	}

	return map[string]any{
		"balances":        len(n.Balances),
		"positions":       len(n.Positions),
		"orders":          len(n.Orders),
		"cash":            n.Cash,
		"positions_value": posValue,
		"total_value":     n.Cash + posValue,
	}, nil
}

// archive retains one raw payload best-effort. Syncs never fail on
// archival.
func (o *Orchestrator) archive(ctx context.Context, runID, name string, payload any) {
	if o.archiver == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := o.archiver.ArchivePayload(ctx, runID, name, b); err != nil {
		o.logger.WarnContext(ctx, "payload archive failed",
			slog.String("run_id", runID),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}

// candidateOrder expands a provider preference into the try order:
// explicit preference first, automatic selection is polymarket then
// kalshi.
func candidateOrder(preferred domain.Provider) []domain.Provider {
	switch preferred {
	case domain.ProviderPolymarket:
		return []domain.Provider{domain.ProviderPolymarket, domain.ProviderKalshi}
	case domain.ProviderKalshi:
		return []domain.Provider{domain.ProviderKalshi, domain.ProviderPolymarket}
	default:
		return []domain.Provider{domain.ProviderPolymarket, domain.ProviderKalshi}
	}
}

// SyncAny syncs the first provider in preference order that completes. A
// provider the user never connected is skipped; a provider whose sync
// fails is recorded and the next candidate is attempted, so a broken
// first provider never masks a healthy second one. When every connected
// provider fails the first captured failure is returned, carrying its run
// and message. When no provider is connected at all the result carries
// ProviderNone and a nil run, with no error.
func (o *Orchestrator) SyncAny(ctx context.Context, userID string, preferred domain.Provider) (domain.SyncResult, error) {
	return o.syncAny(ctx, userID, preferred, false)
}

// SyncNow is the guarded entry point for manual sync triggers: it consults
// the sliding-window throttle and takes the per-(user, provider) lease
// before syncing. A held lease yields an "already running" result without
// opening a run; an exhausted throttle yields domain.ErrSyncThrottled.
func (o *Orchestrator) SyncNow(ctx context.Context, userID string, preferred domain.Provider) (domain.SyncResult, error) {
	return o.syncAny(ctx, userID, preferred, true)
}

func (o *Orchestrator) syncAny(ctx context.Context, userID string, preferred domain.Provider, guarded bool) (domain.SyncResult, error) {
	var failed *domain.SyncResult
	for _, provider := range candidateOrder(preferred) {
		var (
			run domain.SyncRun
			err error
		)
		if guarded {
			key := fmt.Sprintf("%s:%s", userID, provider)

			allowed, lerr := o.limiter.Allow(ctx, key, o.cfg.RateLimit, o.cfg.RateWindow)
			if lerr != nil {
				o.logger.WarnContext(ctx, "sync limiter unavailable, allowing",
					slog.String("key", key),
					slog.String("error", lerr.Error()),
				)
			} else if !allowed {
				return domain.SyncResult{Provider: provider}, domain.ErrSyncThrottled
			}

			unlock, lerr := o.locks.Acquire(ctx, fmt.Sprintf("sync:%s", key), o.cfg.LeaseTTL)
			if errors.Is(lerr, domain.ErrLockHeld) {
				return domain.SyncResult{Provider: provider, Error: "sync already running"}, nil
			}
			if lerr != nil {
				return domain.SyncResult{}, fmt.Errorf("sync: acquire lease: %w", lerr)
			}

			run, err = o.SyncProvider(ctx, userID, provider)
			unlock()
		} else {
			run, err = o.SyncProvider(ctx, userID, provider)
		}

		res, connected := resultFor(provider, run, err)
		if !connected {
			continue
		}
		if res.Error == "" {
			return res, nil
		}
		o.logger.WarnContext(ctx, "provider sync failed",
			slog.String("user_id", userID),
			slog.String("provider", string(provider)),
			slog.String("error", res.Error),
		)
		if failed == nil {
			failed = &res
		}
	}
	if failed != nil {
		return *failed, nil
	}
	return domain.SyncResult{Provider: domain.ProviderNone}, nil
}

// resultFor maps a SyncProvider outcome to a selection result. The bool is
// false only for a provider the user never connected, the one case with
// nothing to report. Any other error, domain.ErrNotFound from an upstream
// endpoint included, produces a result the caller can see.
func resultFor(provider domain.Provider, run domain.SyncRun, err error) (domain.SyncResult, bool) {
	if errors.Is(err, domain.ErrNotConnected) {
		return domain.SyncResult{}, false
	}
	if err != nil {
		res := domain.SyncResult{Provider: provider, Error: err.Error()}
		if run.ID != "" {
			res.Run = &run
		}
		return res, true
	}
	return domain.SyncResult{Provider: provider, Run: &run}, true
}
