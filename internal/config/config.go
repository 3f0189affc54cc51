// Package config defines the top-level configuration for the mirror
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MIRROR_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Vault      VaultConfig      `toml:"vault"`
	Sync       SyncConfig       `toml:"sync"`
	Server     ServerConfig     `toml:"server"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
// Per-user wallet and CLOB credentials live in the credential store, not
// here.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
	ChainID   int    `toml:"chain_id"`
}

// KalshiConfig holds the Kalshi endpoint plus an optional service-level
// API key used for public metadata and candlestick lookups. Per-user
// account credentials live in the credential store.
type KalshiConfig struct {
	BaseURL           string `toml:"base_url"`
	ApiKeyID          string `toml:"api_key_id"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for raw payload
// retention.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// VaultConfig holds the passphrase protecting stored provider credentials.
type VaultConfig struct {
	Password string `toml:"password"`
}

// SyncConfig holds the orchestration tunables.
type SyncConfig struct {
	LeaseTTL     duration `toml:"lease_ttl"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
	StaleTimeout duration `toml:"stale_timeout"`
	SweepEvery   duration `toml:"sweep_every"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder
// can parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters. StaleAfter drives the
// portfolio staleness flag; the server reports stale data, it never blocks
// a read on a live sync.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	StaleAfter  duration `toml:"stale_after"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			ChainID:   137,
		},
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "mirror-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Sync: SyncConfig{
			LeaseTTL:     duration{2 * time.Minute},
			RateLimit:    6,
			RateWindow:   duration{time.Minute},
			StaleTimeout: duration{10 * time.Minute},
			SweepEvery:   duration{time.Minute},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			StaleAfter:  duration{15 * time.Minute},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	// Kalshi
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.ApiKeyID != "" && c.Kalshi.RsaPrivateKeyPath == "" {
		errs = append(errs, "kalshi: rsa_private_key_path is required when api_key_id is set")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Vault
	if c.Vault.Password == "" {
		errs = append(errs, "vault: password must not be empty")
	}

	// Sync
	if c.Sync.RateLimit < 1 {
		errs = append(errs, "sync: rate_limit must be >= 1")
	}
	if c.Sync.LeaseTTL.Duration <= 0 {
		errs = append(errs, "sync: lease_ttl must be positive")
	}
	if c.Sync.StaleTimeout.Duration <= 0 {
		errs = append(errs, "sync: stale_timeout must be positive")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
