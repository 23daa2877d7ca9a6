package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

const (
	loopStreamKey = "loops"
	loopGroup     = "executors"
)

// LoopQueue is the durable detection-to-execution queue on a Redis stream.
// Entries are read through a consumer group so a crashed executor's pending
// loops can be reclaimed, and acknowledged after the execution outcome is
// recorded.
type LoopQueue struct {
	rdb      *redis.Client
	consumer string
}

// NewLoopQueue creates the stream and consumer group if they do not exist.
// consumer names this process within the group.
func NewLoopQueue(ctx context.Context, c *Client, consumer string) (*LoopQueue, error) {
	rdb := c.Underlying()
	err := rdb.XGroupCreateMkStream(ctx, loopStreamKey, loopGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("redis: create loop group: %w", err)
	}
	return &LoopQueue{rdb: rdb, consumer: consumer}, nil
}

// Enqueue appends one discovered loop to the stream.
func (q *LoopQueue) Enqueue(ctx context.Context, shard domain.ShardID, loop domain.ArbitrageLoop) error {
	raw, err := json.Marshal(loop)
	if err != nil {
		return fmt.Errorf("redis: encode loop %s: %w", loop.Key(), err)
	}

	err = q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: loopStreamKey,
		Values: map[string]interface{}{
			"shard": int(shard),
			"loop":  raw,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: enqueue loop %s: %w", loop.Key(), err)
	}
	return nil
}

// Dequeue claims the next pending loop for this consumer, blocking up to the
// given duration. Returns domain.ErrQueueEmpty when nothing arrived in time.
func (q *LoopQueue) Dequeue(ctx context.Context, block time.Duration) (domain.QueuedLoop, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    loopGroup,
		Consumer: q.consumer,
		Streams:  []string{loopStreamKey, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return domain.QueuedLoop{}, domain.ErrQueueEmpty
	}
	if err != nil {
		return domain.QueuedLoop{}, fmt.Errorf("redis: dequeue loop: %w", err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return domain.QueuedLoop{}, domain.ErrQueueEmpty
	}

	msg := res[0].Messages[0]
	queued := domain.QueuedLoop{ID: msg.ID}

	if v, ok := msg.Values["shard"].(string); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.QueuedLoop{}, fmt.Errorf("redis: bad shard in entry %s: %w", msg.ID, err)
		}
		queued.Shard = domain.ShardID(n)
	}

	raw, ok := msg.Values["loop"].(string)
	if !ok {
		return domain.QueuedLoop{}, fmt.Errorf("redis: entry %s has no loop payload", msg.ID)
	}
	if err := json.Unmarshal([]byte(raw), &queued.Loop); err != nil {
		return domain.QueuedLoop{}, fmt.Errorf("redis: decode loop in entry %s: %w", msg.ID, err)
	}
	return queued, nil
}

// Ack marks one dequeued entry as processed.
func (q *LoopQueue) Ack(ctx context.Context, id string) error {
	if err := q.rdb.XAck(ctx, loopStreamKey, loopGroup, id).Err(); err != nil {
		return fmt.Errorf("redis: ack loop %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LoopQueue = (*LoopQueue)(nil)
