package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Mugenseiki1988/smooth-trade/internal/distributor"
	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
	"github.com/Mugenseiki1988/smooth-trade/internal/executor"
	"github.com/Mugenseiki1988/smooth-trade/internal/shard"
)

// runGroup waits for an errgroup and treats context cancellation as a clean
// shutdown.
func runGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) newDistributor(deps *Dependencies) *distributor.Runner {
	return distributor.NewRunner(
		deps.Exchange,
		deps.ShardStore,
		deps.Locks,
		deps.Metrics,
		a.cfg.Distributor.Shards,
		a.cfg.Distributor.MaxPairs,
		a.cfg.Distributor.Interval.Duration,
		a.logger,
	)
}

// multiBooks reads across several shard caches. Symbols are assigned to
// exactly one shard, so at most one cache answers.
type multiBooks []domain.BookReader

func (m multiBooks) Top(symbol string) (domain.BookTop, bool) {
	for _, books := range m {
		if top, ok := books.Top(symbol); ok {
			return top, ok
		}
	}
	return domain.BookTop{}, false
}

func (a *App) newShard(deps *Dependencies, id domain.ShardID) *shard.Shard {
	return shard.New(
		shard.Config{
			ID:             id,
			Capacity:       a.cfg.Distributor.MaxPairs,
			FeedURL:        a.cfg.Exchange.WsHost,
			PollInterval:   a.cfg.Shard.PollInterval.Duration,
			DetectInterval: a.cfg.Shard.DetectInterval.Duration,
			LoopTTL:        a.cfg.Shard.LoopTTL.Duration,
		},
		deps.ShardStore,
		deps.LoopQueue,
		deps.Metrics,
		a.cfg.Exchange.FeeRate,
		a.logger,
	)
}

func (a *App) startMetrics(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.MetricsRunner == nil {
		return
	}
	g.Go(func() error { return deps.MetricsRunner.Run(ctx) })
}

// DistributeMode runs the pair distributor alone. Intended for a single
// coordinator process next to a fleet of shard workers.
func (a *App) DistributeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startMetrics(ctx, g, deps)
	runner := a.newDistributor(deps)
	g.Go(func() error { return runner.Run(ctx) })
	return runGroup(g)
}

// ShardMode runs one market-data shard: feeds, book cache, loop detection,
// and queue publication. No orders are placed.
func (a *App) ShardMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startMetrics(ctx, g, deps)
	sh := a.newShard(deps, domain.ShardID(a.cfg.Shard.ID))
	g.Go(func() error { return sh.Run(ctx) })
	return runGroup(g)
}

func (a *App) startExecutor(ctx context.Context, g *errgroup.Group, deps *Dependencies, books domain.BookReader) {
	engine := executor.NewEngine(
		books,
		deps.Credentials,
		deps.Exchange,
		deps.Ledger,
		deps.Metrics,
		a.cfg.Executor.Stake,
		a.cfg.Exchange.FeeRate,
		a.logger,
	)
	consumer := executor.NewConsumer(deps.LoopQueue, engine, a.logger)
	g.Go(func() error { return consumer.Run(ctx) })

	reporter := executor.NewReporter(
		deps.Ledger,
		deps.Metrics,
		a.cfg.Executor.ReportWindow.Duration,
		a.cfg.Executor.ReportInterval.Duration,
		a.logger,
	)
	g.Go(func() error { return reporter.Run(ctx) })
}

// ExecuteMode runs one shard together with the execution engine. The shard is
// embedded because the executor needs the live book cache, which only exists
// in the process holding the feed connections.
func (a *App) ExecuteMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startMetrics(ctx, g, deps)

	sh := a.newShard(deps, domain.ShardID(a.cfg.Shard.ID))
	g.Go(func() error { return sh.Run(ctx) })

	a.startExecutor(ctx, g, deps, sh.Books())
	return runGroup(g)
}

// ArchiveMode runs the ledger archiver alone.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires archive.enabled")
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startMetrics(ctx, g, deps)
	g.Go(func() error {
		return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration, a.cfg.Archive.Retention.Duration)
	})
	return runGroup(g)
}

// FullMode runs the whole pipeline in one process: distributor, every shard,
// executor, reporter, and optionally the archiver. The executor reads prices
// across all shard caches.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startMetrics(ctx, g, deps)

	runner := a.newDistributor(deps)
	g.Go(func() error { return runner.Run(ctx) })

	books := make(multiBooks, 0, a.cfg.Distributor.Shards)
	for id := 0; id < a.cfg.Distributor.Shards; id++ {
		sh := a.newShard(deps, domain.ShardID(id))
		books = append(books, sh.Books())
		g.Go(func() error { return sh.Run(ctx) })
	}

	a.startExecutor(ctx, g, deps, books)

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration, a.cfg.Archive.Retention.Duration)
		})
	}

	return runGroup(g)
}
