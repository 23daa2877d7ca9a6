package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SMOOTHTRADE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
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

// applyEnvOverrides reads well-known SMOOTHTRADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.RestHost, "SMOOTHTRADE_EXCHANGE_REST_HOST")
	setStr(&cfg.Exchange.WsHost, "SMOOTHTRADE_EXCHANGE_WS_HOST")
	setFloat64(&cfg.Exchange.FeeRate, "SMOOTHTRADE_EXCHANGE_FEE_RATE")

	// ── Credentials ──
	setStr(&cfg.Credentials.File, "SMOOTHTRADE_CREDENTIALS_FILE")
	setStr(&cfg.Credentials.Password, "SMOOTHTRADE_CREDENTIALS_PASSWORD")
	setInt(&cfg.Credentials.MaxRequests, "SMOOTHTRADE_CREDENTIALS_MAX_REQUESTS")
	setDuration(&cfg.Credentials.Window, "SMOOTHTRADE_CREDENTIALS_WINDOW")

	// ── Distributor ──
	setInt(&cfg.Distributor.Shards, "SMOOTHTRADE_DISTRIBUTOR_SHARDS")
	setInt(&cfg.Distributor.MaxPairs, "SMOOTHTRADE_DISTRIBUTOR_MAX_PAIRS_PER_SHARD")
	setDuration(&cfg.Distributor.Interval, "SMOOTHTRADE_DISTRIBUTOR_INTERVAL")

	// ── Shard ──
	setInt(&cfg.Shard.ID, "SMOOTHTRADE_SHARD_ID")
	setDuration(&cfg.Shard.PollInterval, "SMOOTHTRADE_SHARD_POLL_INTERVAL")
	setDuration(&cfg.Shard.DetectInterval, "SMOOTHTRADE_SHARD_DETECT_INTERVAL")
	setDuration(&cfg.Shard.LoopTTL, "SMOOTHTRADE_SHARD_LOOP_TTL")

	// ── Executor ──
	setFloat64(&cfg.Executor.Stake, "SMOOTHTRADE_EXECUTOR_STAKE")
	setDuration(&cfg.Executor.ReportWindow, "SMOOTHTRADE_EXECUTOR_REPORT_WINDOW")
	setDuration(&cfg.Executor.ReportInterval, "SMOOTHTRADE_EXECUTOR_REPORT_INTERVAL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SMOOTHTRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SMOOTHTRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SMOOTHTRADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SMOOTHTRADE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SMOOTHTRADE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SMOOTHTRADE_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SMOOTHTRADE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SMOOTHTRADE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SMOOTHTRADE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SMOOTHTRADE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SMOOTHTRADE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SMOOTHTRADE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SMOOTHTRADE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SMOOTHTRADE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SMOOTHTRADE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SMOOTHTRADE_POSTGRES_RUN_MIGRATIONS")

	// ── Metrics ──
	setStr(&cfg.Metrics.PushgatewayURL, "SMOOTHTRADE_METRICS_PUSHGATEWAY_URL")
	setDuration(&cfg.Metrics.PushInterval, "SMOOTHTRADE_METRICS_PUSH_INTERVAL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SMOOTHTRADE_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "SMOOTHTRADE_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "SMOOTHTRADE_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "SMOOTHTRADE_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "SMOOTHTRADE_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "SMOOTHTRADE_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "SMOOTHTRADE_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "SMOOTHTRADE_ARCHIVE_FORCE_PATH_STYLE")
	setDuration(&cfg.Archive.Interval, "SMOOTHTRADE_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.Retention, "SMOOTHTRADE_ARCHIVE_RETENTION")

	// ── Top-level ──
	setStr(&cfg.Mode, "SMOOTHTRADE_MODE")
	setStr(&cfg.LogLevel, "SMOOTHTRADE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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
