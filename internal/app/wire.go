package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/Mugenseiki1988/smooth-trade/internal/blob/s3"
	"github.com/Mugenseiki1988/smooth-trade/internal/config"
	"github.com/Mugenseiki1988/smooth-trade/internal/credential"
	"github.com/Mugenseiki1988/smooth-trade/internal/crypto"
	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
	"github.com/Mugenseiki1988/smooth-trade/internal/metrics"
	"github.com/Mugenseiki1988/smooth-trade/internal/platform/exchange"
	"github.com/Mugenseiki1988/smooth-trade/internal/store/postgres"
	redisstore "github.com/Mugenseiki1988/smooth-trade/internal/store/redis"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	ShardStore  domain.ShardConfigStore
	LoopQueue   domain.LoopQueue
	Locks       domain.LockManager
	Ledger      domain.TradeLedger
	Metrics     domain.MetricSink
	Exchange    *exchange.Client
	Credentials domain.CredentialPool

	// MetricsRunner is non-nil when a Pushgateway is configured; modes run it
	// alongside their workers.
	MetricsRunner *metrics.PushSink

	// Archiver is non-nil when archival is enabled.
	Archiver *s3blob.LedgerArchiver
}

// needsPostgres returns true for modes that persist trade records.
func needsPostgres(mode string) bool {
	switch mode {
	case "execute", "archive", "full":
		return true
	default:
		return false
	}
}

// needsCredentials returns true for modes that place orders.
func needsCredentials(mode string) bool {
	switch mode {
	case "execute", "full":
		return true
	default:
		return false
	}
}

// Wire constructs the concrete dependency implementations from the given
// configuration and returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis: shard documents, loop queue, locks ---
	redisClient, err := redisstore.New(ctx, redisstore.ClientConfig{
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

	deps.ShardStore = redisstore.NewShardConfigStore(redisClient)
	deps.Locks = redisstore.NewLockManager(redisClient)

	consumer := fmt.Sprintf("shard-%d", cfg.Shard.ID)
	queue, err := redisstore.NewLoopQueue(ctx, redisClient, consumer)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: loop queue: %w", err)
	}
	deps.LoopQueue = queue

	// --- Exchange REST client ---
	deps.Exchange = exchange.NewClient(cfg.Exchange.RestHost)

	// --- PostgreSQL trade ledger ---
	if needsPostgres(cfg.Mode) {
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
		deps.Ledger = postgres.NewTradeLedger(pgClient.Pool())
	}

	// --- Credential pool from the encrypted keyfile ---
	if needsCredentials(cfg.Mode) {
		creds, err := crypto.LoadCredentialsFile(cfg.Credentials.File, cfg.Credentials.Password)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: credentials: %w", err)
		}
		deps.Credentials = credential.NewPool(creds,
			cfg.Credentials.MaxRequests, cfg.Credentials.Window.Duration, logger)
	}

	// --- Metric sink ---
	if cfg.Metrics.PushgatewayURL != "" {
		sink := metrics.NewPushSink(cfg.Metrics.PushgatewayURL,
			cfg.Metrics.PushInterval.Duration, logger)
		deps.Metrics = sink
		deps.MetricsRunner = sink
	} else {
		deps.Metrics = metrics.NopSink{}
	}

	// --- S3 ledger archiver ---
	if cfg.Archive.Enabled && needsPostgres(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewLedgerArchiver(s3blob.NewWriter(s3Client), deps.Ledger, logger)
	}

	return deps, cleanup, nil
}
