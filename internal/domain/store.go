package domain

import (
	"context"
	"time"
)

// ShardConfigStore persists per-shard documents. Read/write granularity is
// whole-document replace: Put publishes a complete new document atomically so
// a shard never observes a half-updated assignment.
type ShardConfigStore interface {
	Get(ctx context.Context, shard ShardID) (ShardDocument, error)
	Put(ctx context.Context, doc ShardDocument) error
	ListShards(ctx context.Context) ([]ShardID, error)
}

// QueuedLoop is one entry on the execution queue.
type QueuedLoop struct {
	ID    string
	Shard ShardID
	Loop  ArbitrageLoop
}

// LoopQueue is the durable queue between detection and execution. Dequeue
// returns ErrQueueEmpty when nothing is pending within the block duration.
type LoopQueue interface {
	Enqueue(ctx context.Context, shard ShardID, loop ArbitrageLoop) error
	Dequeue(ctx context.Context, block time.Duration) (QueuedLoop, error)
	Ack(ctx context.Context, id string) error
}

// TradeLedger is the append-only sink for trade records. No update or delete
// of individual records is exposed to the core; ListBefore/DeleteBefore exist
// only for the archiver's retention sweep.
type TradeLedger interface {
	Append(ctx context.Context, rec TradeRecord) error
	ListRecent(ctx context.Context, limit int) ([]TradeRecord, error)
	SumNetProfit(ctx context.Context, since time.Time) (float64, error)
	CountByStatus(ctx context.Context, since time.Time) (map[TradeStatus]int64, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// MetricSink accepts (name, value) pairs fire-and-forget. Implementations
// log push failures but never propagate them to the caller.
type MetricSink interface {
	PushMetric(name string, value float64)
}

// LockManager provides distributed locking for singleton tasks such as the
// distributor cycle.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// PairSource supplies the universe of active trading pairs from exchange
// metadata.
type PairSource interface {
	ActivePairs(ctx context.Context) ([]TradingPair, error)
}

// OrderRequest is one synchronous order placement. Price zero means a market
// order.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Quantity float64
	Price    float64
}

// OrderResult is the exchange's response to a placed order.
type OrderResult struct {
	OrderID     string
	FilledPrice float64
	FilledQty   float64
	Status      string
}

// OrderPlacer submits orders to the exchange using the given credential.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest, cred Credential) (OrderResult, error)
}
