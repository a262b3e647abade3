// Package config defines the top-level configuration for the predictum
// server and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PREDICTUM_* environment
// variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Chain     ChainConfig     `toml:"chain"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Oracle    OracleConfig    `toml:"oracle"`
	LogLevel  string          `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	AdminKey    string   `toml:"admin_key"`
}

// ChainConfig holds the GraphQL endpoint parameters for the on-chain
// replica.
type ChainConfig struct {
	Enabled       bool     `toml:"enabled"`
	NodeURL       string   `toml:"node_url"`
	ChainID       string   `toml:"chain_id"`
	ApplicationID string   `toml:"application_id"`
	APIKey        string   `toml:"api_key"`
	Timeout       duration `toml:"timeout"`
}

// LedgerConfig holds market ledger parameters.
type LedgerConfig struct {
	StartingBalance float64  `toml:"starting_balance"`
	ExpirySweep     duration `toml:"expiry_sweep"`
}

// ReconcileConfig holds reconciliation monitor parameters.
type ReconcileConfig struct {
	Enabled      bool     `toml:"enabled"`
	Interval     duration `toml:"interval"`
	MaxRetries   int      `toml:"max_retries"`
	InitialDelay duration `toml:"initial_delay"`
}

// PostgresConfig holds PostgreSQL connection parameters for the durable
// ledger mirror.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
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

// ArchiveConfig holds settlement archive parameters.
type ArchiveConfig struct {
	Interval duration `toml:"interval"`
}

// OracleConfig holds parameters for the price oracle that opens and
// auto-resolves crypto markets from live market data.
type OracleConfig struct {
	Enabled       bool     `toml:"enabled"`
	BaseURL       string   `toml:"base_url"`
	Interval      duration `toml:"interval"`
	CreateMarkets bool     `toml:"create_markets"`
	TopCoins      int      `toml:"top_coins"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Chain: ChainConfig{
			Enabled: false,
			NodeURL: "http://localhost:8080",
			Timeout: duration{10 * time.Second},
		},
		Ledger: LedgerConfig{
			StartingBalance: 1000,
			ExpirySweep:     duration{30 * time.Second},
		},
		Reconcile: ReconcileConfig{
			Enabled:      false,
			Interval:     duration{15 * time.Second},
			MaxRetries:   3,
			InitialDelay: duration{500 * time.Millisecond},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "predictum",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "predictum-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval: duration{time.Hour},
		},
		Oracle: OracleConfig{
			Enabled:       false,
			Interval:      duration{5 * time.Minute},
			CreateMarkets: true,
			TopCoins:      15,
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

// Validate checks the Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}

	if c.Ledger.StartingBalance < 0 {
		errs = append(errs, "ledger: starting_balance must be non-negative")
	}
	if c.Ledger.ExpirySweep.Duration <= 0 {
		errs = append(errs, "ledger: expiry_sweep must be positive")
	}

	if c.Chain.Enabled {
		if c.Chain.NodeURL == "" {
			errs = append(errs, "chain: node_url is required when chain is enabled")
		}
		if c.Chain.ChainID == "" {
			errs = append(errs, "chain: chain_id is required when chain is enabled")
		}
		if c.Chain.ApplicationID == "" {
			errs = append(errs, "chain: application_id is required when chain is enabled")
		}
	}

	if c.Reconcile.Enabled {
		if !c.Chain.Enabled {
			errs = append(errs, "reconcile: requires chain to be enabled")
		}
		if c.Reconcile.Interval.Duration <= 0 {
			errs = append(errs, "reconcile: interval must be positive")
		}
		if c.Reconcile.MaxRetries < 1 {
			errs = append(errs, "reconcile: max_retries must be at least 1")
		}
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: either dsn or host must be set when postgres is enabled")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required when redis is enabled")
	}

	if c.S3.Enabled {
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive when s3 is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region is required when s3 is enabled")
		}
	}

	if c.Oracle.Enabled {
		if c.Oracle.Interval.Duration <= 0 {
			errs = append(errs, "oracle: interval must be positive when oracle is enabled")
		}
		if c.Oracle.TopCoins < 1 {
			errs = append(errs, "oracle: top_coins must be at least 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
