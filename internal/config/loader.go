package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MIRROR_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MIRROR_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "MIRROR_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "MIRROR_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "MIRROR_POLYMARKET_DATA_HOST")
	setInt(&cfg.Polymarket.ChainID, "MIRROR_POLYMARKET_CHAIN_ID")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.BaseURL, "MIRROR_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKeyID, "MIRROR_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "MIRROR_KALSHI_RSA_PRIVATE_KEY_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MIRROR_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MIRROR_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MIRROR_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MIRROR_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MIRROR_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MIRROR_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MIRROR_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MIRROR_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MIRROR_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MIRROR_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MIRROR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MIRROR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MIRROR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MIRROR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MIRROR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MIRROR_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MIRROR_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MIRROR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MIRROR_S3_REGION")
	setStr(&cfg.S3.Bucket, "MIRROR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MIRROR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MIRROR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MIRROR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MIRROR_S3_FORCE_PATH_STYLE")

	// ── Vault ──
	setStr(&cfg.Vault.Password, "MIRROR_VAULT_PASSWORD")

	// ── Sync ──
	setDuration(&cfg.Sync.LeaseTTL, "MIRROR_SYNC_LEASE_TTL")
	setInt(&cfg.Sync.RateLimit, "MIRROR_SYNC_RATE_LIMIT")
	setDuration(&cfg.Sync.RateWindow, "MIRROR_SYNC_RATE_WINDOW")
	setDuration(&cfg.Sync.StaleTimeout, "MIRROR_SYNC_STALE_TIMEOUT")
	setDuration(&cfg.Sync.SweepEvery, "MIRROR_SYNC_SWEEP_EVERY")

	// ── Server ──
	setInt(&cfg.Server.Port, "MIRROR_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "MIRROR_SERVER_API_KEY")
	setDuration(&cfg.Server.StaleAfter, "MIRROR_SERVER_STALE_AFTER")
	if v := os.Getenv("MIRROR_SERVER_CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Server.CORSOrigins = parts
	}

	// ── Misc ──
	setStr(&cfg.LogLevel, "MIRROR_LOG_LEVEL")
}

// setStr assigns the environment variable value to dst when set.
func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt assigns the parsed environment variable value to dst when set and
// parseable.
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setBool assigns the parsed environment variable value to dst when set
// and parseable.
func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// setDuration assigns the parsed environment variable value to dst when
// set and parseable.
func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
