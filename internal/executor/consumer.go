package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

const (
	// dequeueBlock is how long one Dequeue waits for work before rechecking
	// cancellation.
	dequeueBlock = 5 * time.Second

	// credentialBackoff is the wait between retries when every credential is
	// exhausted for the current window.
	credentialBackoff = 2 * time.Second
)

// Consumer drains the loop queue into the engine. A dequeued loop is retried
// until a credential frees up; it is acknowledged only after the engine has
// reached a terminal state, so a crash mid-execution leaves the entry pending
// for reclaim.
type Consumer struct {
	queue  domain.LoopQueue
	engine *Engine
	logger *slog.Logger
}

// NewConsumer creates a Consumer over the given queue and engine.
func NewConsumer(queue domain.LoopQueue, engine *Engine, logger *slog.Logger) *Consumer {
	return &Consumer{
		queue:  queue,
		engine: engine,
		logger: logger.With(slog.String("component", "executor_consumer")),
	}
}

// Run consumes loops until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("executor consumer started")
	defer c.logger.Info("executor consumer stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := c.queue.Dequeue(ctx, dequeueBlock)
		if err != nil {
			if errors.Is(err, domain.ErrQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("dequeue failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(credentialBackoff):
			}
			continue
		}

		if err := c.process(ctx, item); err != nil {
			return err
		}
	}
}

// process executes one dequeued loop, backing off while the credential pool
// is exhausted, then acknowledges the queue entry.
func (c *Consumer) process(ctx context.Context, item domain.QueuedLoop) error {
	for {
		_, err := c.engine.Execute(ctx, item.Shard, item.Loop)
		if err == nil {
			break
		}
		if !IsNoCredential(err) {
			c.logger.Error("execution failed", slog.String("loop", item.Loop.Key()), slog.Any("error", err))
			break
		}
		c.logger.Debug("credential pool exhausted, backing off",
			slog.String("loop", item.Loop.Key()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(credentialBackoff):
		}
	}

	if err := c.queue.Ack(ctx, item.ID); err != nil {
		c.logger.Error("ack failed", slog.String("entry", item.ID), slog.Any("error", err))
	}
	return nil
}
