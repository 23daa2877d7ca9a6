package distributor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

const lockKey = "distributor:cycle"

// Runner drives the periodic redistribution cycle. Only one process instance
// runs the cycle at a time; the distributed lock guards against concurrent
// distributors racing on the shard documents.
type Runner struct {
	source   domain.PairSource
	store    domain.ShardConfigStore
	locks    domain.LockManager
	metrics  domain.MetricSink
	shards   int
	capacity int
	interval time.Duration
	logger   *slog.Logger
	rng      *rand.Rand
	now      func() time.Time
}

// NewRunner creates a Runner over shards numbered 0..shards-1, each holding
// at most capacity pairs.
func NewRunner(source domain.PairSource, store domain.ShardConfigStore, locks domain.LockManager, metrics domain.MetricSink, shards, capacity int, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		source:   source,
		store:    store,
		locks:    locks,
		metrics:  metrics,
		shards:   shards,
		capacity: capacity,
		interval: interval,
		logger:   logger.With(slog.String("component", "distributor")),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Run executes one cycle immediately, then one per interval until ctx is
// cancelled. A failed cycle is logged and the next tick retries; only ctx
// cancellation stops the loop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.Cycle(ctx); err != nil {
			if _, ok := domain.IsCapacityExceeded(err); !ok {
				r.logger.Error("redistribution cycle failed", slog.Any("error", err))
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs a single redistribution: refresh the active pair universe, read
// every shard's reported load, compute the new assignment, and publish each
// shard's document as a whole-document replace. A capacity overflow publishes
// the partial assignment and surfaces the remainder to the operator instead
// of silently dropping pairs.
func (r *Runner) Cycle(ctx context.Context) error {
	unlock, err := r.locks.Acquire(ctx, lockKey, r.interval)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.Debug("cycle skipped, lock held elsewhere")
			return nil
		}
		return fmt.Errorf("distributor: acquire lock: %w", err)
	}
	defer unlock()

	pairs, err := r.source.ActivePairs(ctx)
	if err != nil {
		return fmt.Errorf("distributor: refresh pairs: %w", err)
	}
	active := pairs[:0]
	for _, p := range pairs {
		if p.Valid() {
			active = append(active, p)
		}
	}

	docs := make(map[domain.ShardID]domain.ShardDocument, r.shards)
	loads := make(map[domain.ShardID]float64, r.shards)
	for i := 0; i < r.shards; i++ {
		id := domain.ShardID(i)
		doc, err := r.store.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("distributor: read shard %d: %w", id, err)
			}
			doc = domain.ShardDocument{Shard: id}
		}
		docs[id] = doc
		loads[id] = doc.Load
	}

	assignment, distErr := Redistribute(r.rng, active, loads, r.capacity)
	if distErr != nil {
		if ce, ok := domain.IsCapacityExceeded(distErr); ok {
			r.logger.Error("shard capacity exceeded, publishing partial assignment",
				slog.Int("unassigned", len(ce.Unassigned)),
				slog.Int("pairs", len(active)),
				slog.Int("capacity", r.shards*r.capacity))
			r.metrics.PushMetric("distributor_unassigned_pairs", float64(len(ce.Unassigned)))
		} else {
			return fmt.Errorf("distributor: redistribute: %w", distErr)
		}
	} else {
		r.metrics.PushMetric("distributor_unassigned_pairs", 0)
	}

	now := r.now()
	for id, assigned := range assignment {
		doc := docs[id]
		doc.Pairs = assigned
		doc.UpdatedAt = now
		if err := r.store.Put(ctx, doc); err != nil {
			return fmt.Errorf("distributor: publish shard %d: %w", id, err)
		}
		r.logger.Info("published shard assignment",
			slog.Int("shard", int(id)),
			slog.Int("pairs", len(assigned)))
	}

	r.metrics.PushMetric("distributor_active_pairs", float64(len(active)))
	return distErr
}
