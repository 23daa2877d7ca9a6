// Package shard runs one market-data worker: it follows its published
// assignment, streams top-of-book updates into the local cache, detects
// arbitrage loops, and hands profitable loops to the execution queue.
package shard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/book"
	"github.com/Mugenseiki1988/smooth-trade/internal/detector"
	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
	"github.com/Mugenseiki1988/smooth-trade/internal/feed"
)

// symbolsPerConn caps how many symbols share one streaming connection.
const symbolsPerConn = 10

// Config holds one shard's identity and cadence.
type Config struct {
	ID             domain.ShardID
	Capacity       int
	FeedURL        string
	PollInterval   time.Duration
	DetectInterval time.Duration
	LoopTTL        time.Duration
}

// Shard is one market-data worker.
type Shard struct {
	cfg     Config
	store   domain.ShardConfigStore
	queue   domain.LoopQueue
	metrics domain.MetricSink
	cache   *book.Cache
	det     *detector.Detector
	logger  *slog.Logger

	mu       sync.Mutex
	pairs    []domain.TradingPair
	stopFeed context.CancelFunc
	feedWG   sync.WaitGroup
}

// New creates a Shard. feeRate is the per-hop trading fee used for profit
// estimation.
func New(cfg Config, store domain.ShardConfigStore, queue domain.LoopQueue, metrics domain.MetricSink, feeRate float64, logger *slog.Logger) *Shard {
	cache := book.NewCache(nil)
	return &Shard{
		cfg:     cfg,
		store:   store,
		queue:   queue,
		metrics: metrics,
		cache:   cache,
		det:     detector.New(cache, feeRate),
		logger:  logger.With(slog.String("component", "shard"), slog.Int("shard", int(cfg.ID))),
	}
}

// Books exposes the shard's order-book cache for in-process readers.
func (s *Shard) Books() domain.BookReader { return s.cache }

// Run drives the shard until ctx is cancelled: one poller following the
// published assignment and one detection loop. On shutdown the feeds are
// drained before Run returns.
func (s *Shard) Run(ctx context.Context) error {
	s.logger.Info("shard started")
	defer s.logger.Info("shard stopped")
	defer s.drain()

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	detect := time.NewTicker(s.cfg.DetectInterval)
	defer detect.Stop()

	if err := s.refreshAssignment(ctx); err != nil {
		s.logger.Warn("initial assignment unavailable", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			if err := s.refreshAssignment(ctx); err != nil {
				s.logger.Warn("assignment refresh failed", slog.Any("error", err))
			}
		case <-detect.C:
			if err := s.detectCycle(ctx); err != nil {
				s.logger.Error("detection cycle failed", slog.Any("error", err))
			}
		}
	}
}

// refreshAssignment reads the shard's document and, when the assigned pair
// set changed, restarts the feeds and drops cache entries for symbols no
// longer owned. Entries are never removed between redistribution cycles;
// staleness in the interim is the consumer's concern.
func (s *Shard) refreshAssignment(ctx context.Context) error {
	doc, err := s.store.Get(ctx, s.cfg.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("shard %d: read assignment: %w", s.cfg.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if samePairs(s.pairs, doc.Pairs) {
		return nil
	}

	s.logger.Info("assignment changed",
		slog.Int("old_pairs", len(s.pairs)),
		slog.Int("new_pairs", len(doc.Pairs)))

	dropped := removedSymbols(s.pairs, doc.Pairs)
	s.pairs = doc.Pairs

	s.restartFeedsLocked(ctx)
	s.cache.Drop(dropped)
	return nil
}

// restartFeedsLocked tears down the current connections and opens fresh ones
// covering the new assignment. Caller holds s.mu.
func (s *Shard) restartFeedsLocked(ctx context.Context) {
	if s.stopFeed != nil {
		s.stopFeed()
		s.feedWG.Wait()
	}

	if len(s.pairs) == 0 {
		s.stopFeed = nil
		return
	}

	feedCtx, cancel := context.WithCancel(ctx)
	s.stopFeed = cancel

	for _, group := range chunkSymbols(s.pairs, symbolsPerConn) {
		client := feed.NewClient(feed.StreamURL(s.cfg.FeedURL, group), func(top domain.BookTop) {
			s.cache.Update(top)
		}, s.logger)

		s.feedWG.Add(1)
		go func() {
			defer s.feedWG.Done()
			client.Run(feedCtx)
		}()
	}
}

// detectCycle scans the current assignment against the live cache, reaps
// expired loops from the persisted document, enqueues newly discovered loops,
// and publishes the updated document with a load heartbeat.
func (s *Shard) detectCycle(ctx context.Context) error {
	s.mu.Lock()
	pairs := append([]domain.TradingPair(nil), s.pairs...)
	s.mu.Unlock()
	if len(pairs) == 0 {
		return nil
	}

	doc, err := s.store.Get(ctx, s.cfg.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("shard %d: read document: %w", s.cfg.ID, err)
	}
	doc.Shard = s.cfg.ID
	doc.Pairs = pairs

	now := time.Now()
	kept, expired := detector.Sweep(doc.Loops, now, s.cfg.LoopTTL)
	for _, loop := range expired {
		s.metrics.PushMetric("reaper_expired_loop_age_seconds", loop.Age(now).Seconds())
	}
	if len(expired) > 0 {
		s.logger.Info("reaped expired loops", slog.Int("expired", len(expired)))
	}

	known := make(map[string]bool, len(kept))
	for _, loop := range kept {
		known[loop.Key()] = true
	}

	discovered := s.det.Scan(pairs)
	enqueued := 0
	for _, loop := range discovered {
		if known[loop.Key()] {
			continue
		}
		if err := s.queue.Enqueue(ctx, s.cfg.ID, loop); err != nil {
			s.logger.Error("enqueue failed",
				slog.String("loop", loop.Key()),
				slog.Any("error", err))
			continue
		}
		known[loop.Key()] = true
		kept = append(kept, loop)
		enqueued++
	}

	doc.Loops = kept
	doc.Load = s.load(len(pairs))
	doc.UpdatedAt = now
	if err := s.store.Put(ctx, doc); err != nil {
		return fmt.Errorf("shard %d: publish document: %w", s.cfg.ID, err)
	}

	s.metrics.PushMetric(fmt.Sprintf("shard_%d_load", s.cfg.ID), doc.Load)
	s.metrics.PushMetric(fmt.Sprintf("shard_%d_loops", s.cfg.ID), float64(len(kept)))
	if enqueued > 0 {
		s.logger.Info("loops discovered",
			slog.Int("enqueued", enqueued),
			slog.Int("tracked", len(kept)))
	}
	return nil
}

// load reports how full the shard is relative to its pair capacity.
func (s *Shard) load(pairs int) float64 {
	if s.cfg.Capacity <= 0 {
		return 0
	}
	return float64(pairs) / float64(s.cfg.Capacity)
}

// drain stops the feed connections and waits for their goroutines.
func (s *Shard) drain() {
	s.mu.Lock()
	stop := s.stopFeed
	s.stopFeed = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		s.feedWG.Wait()
	}
}

func samePairs(a, b []domain.TradingPair) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, p := range a {
		set[p.Symbol] = true
	}
	for _, p := range b {
		if !set[p.Symbol] {
			return false
		}
	}
	return true
}

// removedSymbols returns the symbols present in old but absent from new.
func removedSymbols(old, new []domain.TradingPair) []string {
	keep := make(map[string]bool, len(new))
	for _, p := range new {
		keep[p.Symbol] = true
	}
	var removed []string
	for _, p := range old {
		if !keep[p.Symbol] {
			removed = append(removed, p.Symbol)
		}
	}
	return removed
}

// chunkSymbols splits the assignment into connection-sized symbol groups.
func chunkSymbols(pairs []domain.TradingPair, size int) [][]string {
	symbols := make([]string, len(pairs))
	for i, p := range pairs {
		symbols[i] = p.Symbol
	}

	var groups [][]string
	for len(symbols) > size {
		groups = append(groups, symbols[:size])
		symbols = symbols[size:]
	}
	if len(symbols) > 0 {
		groups = append(groups, symbols)
	}
	return groups
}
