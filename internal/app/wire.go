package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	s3blob "github.com/tummybutters/marketmirror/internal/blob/s3"
	"github.com/tummybutters/marketmirror/internal/cache/redis"
	"github.com/tummybutters/marketmirror/internal/config"
	"github.com/tummybutters/marketmirror/internal/domain"
	"github.com/tummybutters/marketmirror/internal/markets"
	"github.com/tummybutters/marketmirror/internal/platform/kalshi"
	"github.com/tummybutters/marketmirror/internal/platform/polymarket"
	"github.com/tummybutters/marketmirror/internal/store/postgres"
	syncsvc "github.com/tummybutters/marketmirror/internal/sync"
	"github.com/tummybutters/marketmirror/internal/valuation"
)

// Dependencies bundles every domain-level dependency the service needs. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	RunStore      domain.SyncRunStore
	MirrorStore   domain.MirrorStore
	SnapshotStore domain.SnapshotStore
	ActionStore   domain.ActionStore
	Credentials   *postgres.CredentialStore

	// Caches
	LockManager domain.LockManager
	SyncLimiter domain.SyncLimiter

	// Blob storage (nil unless s3 is enabled)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.PayloadArchiver

	// Services
	Orchestrator  *syncsvc.Orchestrator
	Janitor       *syncsvc.Janitor
	Trader        *syncsvc.Trader
	Reconstructor *valuation.Reconstructor
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.RunStore = postgres.NewSyncRunStore(pool)
	deps.MirrorStore = postgres.NewMirrorStore(pool)
	deps.SnapshotStore = postgres.NewSnapshotStore(pool)
	deps.ActionStore = postgres.NewActionStore(pool)
	deps.Credentials = postgres.NewCredentialStore(pool, cfg.Vault.Password)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SyncLimiter = redis.NewSyncLimiter(redisClient)

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewPayloadArchiver(deps.BlobWriter, logger)
	}

	// --- Provider clients ---
	factory := syncsvc.NewClientFactory(deps.Credentials, syncsvc.ClientFactoryConfig{
		DataAPIURL:    cfg.Polymarket.DataHost,
		ClobAPIURL:    cfg.Polymarket.ClobHost,
		KalshiBaseURL: cfg.Kalshi.BaseURL,
		ChainID:       cfg.Polymarket.ChainID,
	})

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, nil, nil)

	// Service-level Kalshi client for public metadata and candlesticks.
	kalshiClient := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKeyID)
	if cfg.Kalshi.RsaPrivateKeyPath != "" {
		pemBytes, err := os.ReadFile(cfg.Kalshi.RsaPrivateKeyPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: read kalshi key: %w", err)
		}
		if err := kalshiClient.SetRSAPrivateKey(pemBytes); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: kalshi key: %w", err)
		}
	}

	resolver := markets.NewResolver(0, logger)
	pmSource := markets.NewPolymarketSource(gamma)
	kcSource := markets.NewKalshiSource(kalshiClient)
	history := markets.NewHistorySource(clob, kalshiClient)

	// --- Services ---
	deps.Orchestrator = syncsvc.NewOrchestrator(
		factory,
		deps.RunStore,
		deps.MirrorStore,
		deps.SnapshotStore,
		resolver,
		pmSource,
		kcSource,
		deps.LockManager,
		deps.SyncLimiter,
		deps.Archiver,
		syncsvc.OrchestratorConfig{
			LeaseTTL:   cfg.Sync.LeaseTTL.Duration,
			RateLimit:  cfg.Sync.RateLimit,
			RateWindow: cfg.Sync.RateWindow.Duration,
		},
		logger,
	)
	deps.Janitor = syncsvc.NewJanitor(deps.RunStore, cfg.Sync.StaleTimeout.Duration, cfg.Sync.SweepEvery.Duration, logger)
	deps.Trader = syncsvc.NewTrader(factory, deps.ActionStore, logger)
	deps.Reconstructor = valuation.NewReconstructor(deps.MirrorStore, deps.RunStore, history, logger)

	return deps, cleanup, nil
}
