// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SMOOTHTRADE_* environment
// variables.
type Config struct {
	Exchange    ExchangeConfig    `toml:"exchange"`
	Credentials CredentialsConfig `toml:"credentials"`
	Distributor DistributorConfig `toml:"distributor"`
	Shard       ShardConfig       `toml:"shard"`
	Executor    ExecutorConfig    `toml:"executor"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Archive     ArchiveConfig     `toml:"archive"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ExchangeConfig holds the upstream exchange endpoints and fee schedule.
type ExchangeConfig struct {
	RestHost string  `toml:"rest_host"`
	WsHost   string  `toml:"ws_host"`
	FeeRate  float64 `toml:"fee_rate"`
}

// CredentialsConfig holds the encrypted credentials file and the per-key
// rate budget.
type CredentialsConfig struct {
	File        string   `toml:"file"`
	Password    string   `toml:"password"`
	MaxRequests int      `toml:"max_requests"`
	Window      duration `toml:"window"`
}

// DistributorConfig holds the redistribution cadence and shard sizing.
type DistributorConfig struct {
	Shards   int      `toml:"shards"`
	MaxPairs int      `toml:"max_pairs_per_shard"`
	Interval duration `toml:"interval"`
}

// ShardConfig holds one shard's identity and cadence.
type ShardConfig struct {
	ID             int      `toml:"id"`
	PollInterval   duration `toml:"poll_interval"`
	DetectInterval duration `toml:"detect_interval"`
	LoopTTL        duration `toml:"loop_ttl"`
}

// ExecutorConfig holds the execution stake and reporting cadence.
type ExecutorConfig struct {
	Stake          float64  `toml:"stake"`
	ReportWindow   duration `toml:"report_window"`
	ReportInterval duration `toml:"report_interval"`
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

// MetricsConfig holds the Pushgateway target. An empty URL disables pushes.
type MetricsConfig struct {
	PushgatewayURL string   `toml:"pushgateway_url"`
	PushInterval   duration `toml:"push_interval"`
}

// ArchiveConfig holds the S3 target and retention for ledger archival.
type ArchiveConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Interval       duration `toml:"interval"`
	Retention      duration `toml:"retention"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration baseline.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			RestHost: "https://api.binance.com",
			WsHost:   "wss://stream.binance.com:9443",
			FeeRate:  0.001,
		},
		Credentials: CredentialsConfig{
			MaxRequests: 1200,
			Window:      duration{60 * time.Second},
		},
		Distributor: DistributorConfig{
			Shards:   20,
			MaxPairs: 10,
			Interval: duration{5 * time.Minute},
		},
		Shard: ShardConfig{
			PollInterval:   duration{30 * time.Second},
			DetectInterval: duration{10 * time.Second},
			LoopTTL:        duration{time.Hour},
		},
		Executor: ExecutorConfig{
			Stake:          100,
			ReportWindow:   duration{24 * time.Hour},
			ReportInterval: duration{5 * time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "smoothtrade",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Metrics: MetricsConfig{
			PushInterval: duration{15 * time.Second},
		},
		Archive: ArchiveConfig{
			Region:    "us-east-1",
			UseSSL:    true,
			Interval:  duration{time.Hour},
			Retention: duration{30 * 24 * time.Hour},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"distribute": true,
	"shard":      true,
	"execute":    true,
	"archive":    true,
	"full":       true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: distribute, shard, execute, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Exchange.RestHost == "" {
		errs = append(errs, "exchange: rest_host must not be empty")
	}
	if c.Exchange.WsHost == "" {
		errs = append(errs, "exchange: ws_host must not be empty")
	}
	if c.Exchange.FeeRate < 0 || c.Exchange.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("exchange: fee_rate must be in [0, 1), got %g", c.Exchange.FeeRate))
	}

	needsCredentials := c.Mode == "execute" || c.Mode == "full"
	if needsCredentials {
		if c.Credentials.File == "" {
			errs = append(errs, "credentials: file must be set for mode "+c.Mode)
		}
		if c.Credentials.File != "" && c.Credentials.Password == "" {
			errs = append(errs, "credentials: password is required when file is set")
		}
	}
	if c.Credentials.MaxRequests < 1 {
		errs = append(errs, "credentials: max_requests must be >= 1")
	}
	if c.Credentials.Window.Duration <= 0 {
		errs = append(errs, "credentials: window must be positive")
	}

	if c.Distributor.Shards < 1 {
		errs = append(errs, "distributor: shards must be >= 1")
	}
	if c.Distributor.MaxPairs < 1 {
		errs = append(errs, "distributor: max_pairs_per_shard must be >= 1")
	}
	if c.Distributor.Interval.Duration <= 0 {
		errs = append(errs, "distributor: interval must be positive")
	}

	if c.Shard.ID < 0 || c.Shard.ID >= c.Distributor.Shards {
		errs = append(errs, fmt.Sprintf("shard: id must be in [0, %d), got %d", c.Distributor.Shards, c.Shard.ID))
	}
	if c.Shard.PollInterval.Duration <= 0 {
		errs = append(errs, "shard: poll_interval must be positive")
	}
	if c.Shard.DetectInterval.Duration <= 0 {
		errs = append(errs, "shard: detect_interval must be positive")
	}
	if c.Shard.LoopTTL.Duration <= 0 {
		errs = append(errs, "shard: loop_ttl must be positive")
	}

	if c.Executor.Stake <= 0 {
		errs = append(errs, fmt.Sprintf("executor: stake must be positive, got %g", c.Executor.Stake))
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

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

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must be set when archive is enabled")
		}
		if c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive: retention must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RedactedConfig returns a copy of cfg with sensitive fields replaced by
// "***", for logging the active configuration without exposing secrets.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	redact(&out.Credentials.Password)
	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Archive.AccessKey)
	redact(&out.Archive.SecretKey)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
