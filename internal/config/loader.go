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
// built-in defaults, applies PREDICTUM_* environment variable overrides,
// and returns the final Config. The caller should invoke Config.Validate()
// after Load.
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

// applyEnvOverrides overwrites Config fields from well-known PREDICTUM_*
// environment variables so operators can inject secrets at deploy time
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Server
	setInt(&cfg.Server.Port, "PREDICTUM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDICTUM_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PREDICTUM_SERVER_API_KEY")
	setStr(&cfg.Server.AdminKey, "PREDICTUM_SERVER_ADMIN_KEY")

	// Chain
	setBool(&cfg.Chain.Enabled, "PREDICTUM_CHAIN_ENABLED")
	setStr(&cfg.Chain.NodeURL, "PREDICTUM_CHAIN_NODE_URL")
	setStr(&cfg.Chain.ChainID, "PREDICTUM_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.ApplicationID, "PREDICTUM_CHAIN_APPLICATION_ID")
	setStr(&cfg.Chain.APIKey, "PREDICTUM_CHAIN_API_KEY")
	setDuration(&cfg.Chain.Timeout, "PREDICTUM_CHAIN_TIMEOUT")

	// Ledger
	setFloat64(&cfg.Ledger.StartingBalance, "PREDICTUM_LEDGER_STARTING_BALANCE")
	setDuration(&cfg.Ledger.ExpirySweep, "PREDICTUM_LEDGER_EXPIRY_SWEEP")

	// Reconcile
	setBool(&cfg.Reconcile.Enabled, "PREDICTUM_RECONCILE_ENABLED")
	setDuration(&cfg.Reconcile.Interval, "PREDICTUM_RECONCILE_INTERVAL")
	setInt(&cfg.Reconcile.MaxRetries, "PREDICTUM_RECONCILE_MAX_RETRIES")
	setDuration(&cfg.Reconcile.InitialDelay, "PREDICTUM_RECONCILE_INITIAL_DELAY")

	// Postgres
	setBool(&cfg.Postgres.Enabled, "PREDICTUM_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PREDICTUM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PREDICTUM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDICTUM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDICTUM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDICTUM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDICTUM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDICTUM_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDICTUM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDICTUM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PREDICTUM_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setBool(&cfg.Redis.Enabled, "PREDICTUM_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PREDICTUM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDICTUM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDICTUM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDICTUM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDICTUM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDICTUM_REDIS_TLS_ENABLED")

	// S3
	setBool(&cfg.S3.Enabled, "PREDICTUM_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PREDICTUM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDICTUM_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDICTUM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDICTUM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDICTUM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PREDICTUM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PREDICTUM_S3_FORCE_PATH_STYLE")

	// Archive
	setDuration(&cfg.Archive.Interval, "PREDICTUM_ARCHIVE_INTERVAL")

	// Oracle
	setBool(&cfg.Oracle.Enabled, "PREDICTUM_ORACLE_ENABLED")
	setStr(&cfg.Oracle.BaseURL, "PREDICTUM_ORACLE_BASE_URL")
	setDuration(&cfg.Oracle.Interval, "PREDICTUM_ORACLE_INTERVAL")
	setBool(&cfg.Oracle.CreateMarkets, "PREDICTUM_ORACLE_CREATE_MARKETS")
	setInt(&cfg.Oracle.TopCoins, "PREDICTUM_ORACLE_TOP_COINS")

	// Top-level
	setStr(&cfg.LogLevel, "PREDICTUM_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
