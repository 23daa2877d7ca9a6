package shard

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

type memStore struct {
	docs map[domain.ShardID]domain.ShardDocument
}

func (m *memStore) Get(_ context.Context, shard domain.ShardID) (domain.ShardDocument, error) {
	doc, ok := m.docs[shard]
	if !ok {
		return domain.ShardDocument{}, domain.ErrNotFound
	}
	return doc, nil
}

func (m *memStore) Put(_ context.Context, doc domain.ShardDocument) error {
	if m.docs == nil {
		m.docs = map[domain.ShardID]domain.ShardDocument{}
	}
	m.docs[doc.Shard] = doc
	return nil
}

func (m *memStore) ListShards(context.Context) ([]domain.ShardID, error) {
	return nil, nil
}

type memQueue struct {
	entries []domain.QueuedLoop
}

func (q *memQueue) Enqueue(_ context.Context, shard domain.ShardID, loop domain.ArbitrageLoop) error {
	q.entries = append(q.entries, domain.QueuedLoop{Shard: shard, Loop: loop})
	return nil
}

func (q *memQueue) Dequeue(context.Context, time.Duration) (domain.QueuedLoop, error) {
	return domain.QueuedLoop{}, domain.ErrQueueEmpty
}

func (q *memQueue) Ack(context.Context, string) error { return nil }

type nopSink struct{}

func (nopSink) PushMetric(string, float64) {}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cyclePairs() []domain.TradingPair {
	return []domain.TradingPair{
		{Symbol: "AB", Base: "A", Quote: "B"},
		{Symbol: "BC", Base: "B", Quote: "C"},
		{Symbol: "CA", Base: "C", Quote: "A"},
	}
}

func newTestShard(store *memStore, queue *memQueue) *Shard {
	cfg := Config{
		ID:             0,
		Capacity:       10,
		PollInterval:   time.Minute,
		DetectInterval: time.Minute,
		LoopTTL:        time.Hour,
	}
	return New(cfg, store, queue, nopSink{}, 0, discard())
}

// prime seeds the cache so the AB>BC>CA rotation clears a 5% edge.
func prime(s *Shard) {
	now := time.Now()
	s.cache.Update(domain.BookTop{Symbol: "AB", BidPrice: 0.99, AskPrice: 1.0, UpdatedAt: now})
	s.cache.Update(domain.BookTop{Symbol: "BC", BidPrice: 1.05, AskPrice: 1.06, UpdatedAt: now})
	s.cache.Update(domain.BookTop{Symbol: "CA", BidPrice: 1.0, AskPrice: 1.01, UpdatedAt: now})
}

func Test_DetectCycle_EnqueuesAndPublishes(t *testing.T) {
	store := &memStore{}
	queue := &memQueue{}
	s := newTestShard(store, queue)
	s.pairs = cyclePairs()
	prime(s)

	require.NoError(t, s.detectCycle(context.Background()))

	require.NotEmpty(t, queue.entries, "profitable loops enqueued")
	doc := store.docs[0]
	assert.Equal(t, len(queue.entries), len(doc.Loops), "published loops mirror the queue")
	assert.Greater(t, doc.Load, 0.0)
	assert.False(t, doc.UpdatedAt.IsZero())
	for _, e := range queue.entries {
		assert.Greater(t, e.Loop.EstProfit, 0.0)
		assert.False(t, e.Loop.DiscoveredAt.IsZero())
	}
}

func Test_DetectCycle_DoesNotReenqueueKnownLoops(t *testing.T) {
	store := &memStore{}
	queue := &memQueue{}
	s := newTestShard(store, queue)
	s.pairs = cyclePairs()
	prime(s)

	require.NoError(t, s.detectCycle(context.Background()))
	first := len(queue.entries)
	require.NotZero(t, first)

	require.NoError(t, s.detectCycle(context.Background()))
	assert.Equal(t, first, len(queue.entries), "already tracked loops enqueue once")
}

func Test_DetectCycle_ReapsExpiredLoops(t *testing.T) {
	stale := domain.ArbitrageLoop{
		Pairs: [3]domain.TradingPair{
			{Symbol: "XA", Base: "X", Quote: "A"},
			{Symbol: "AB2", Base: "A", Quote: "B"},
			{Symbol: "BX", Base: "B", Quote: "X"},
		},
		DiscoveredAt: time.Now().Add(-2 * time.Hour),
	}
	store := &memStore{docs: map[domain.ShardID]domain.ShardDocument{
		0: {Shard: 0, Loops: []domain.ArbitrageLoop{stale}},
	}}
	queue := &memQueue{}
	s := newTestShard(store, queue)
	s.pairs = cyclePairs()
	prime(s)

	require.NoError(t, s.detectCycle(context.Background()))

	for _, loop := range store.docs[0].Loops {
		assert.NotEqual(t, stale.Key(), loop.Key(), "expired loop removed from persisted state")
	}
}

func Test_RefreshAssignment_DropsUnassignedSymbols(t *testing.T) {
	store := &memStore{}
	queue := &memQueue{}
	s := newTestShard(store, queue)
	s.pairs = cyclePairs()
	prime(s)

	_, ok := s.cache.Top("AB")
	require.True(t, ok)

	// New assignment no longer includes AB.
	require.NoError(t, store.Put(context.Background(), domain.ShardDocument{
		Shard: 0,
		Pairs: cyclePairs()[1:],
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.refreshAssignment(ctx))
	s.drain()

	_, ok = s.cache.Top("AB")
	assert.False(t, ok, "entry for unassigned symbol dropped after redistribution")
	_, ok = s.cache.Top("BC")
	assert.True(t, ok, "still-assigned entries retained")
}

func Test_ChunkSymbols(t *testing.T) {
	groups := chunkSymbols(cyclePairs(), 2)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"AB", "BC"}, groups[0])
	assert.Equal(t, []string{"CA"}, groups[1])

	assert.Empty(t, chunkSymbols(nil, 2))
}

func Test_SamePairs(t *testing.T) {
	assert.True(t, samePairs(cyclePairs(), cyclePairs()))
	assert.False(t, samePairs(cyclePairs(), cyclePairs()[:2]))
	assert.False(t, samePairs(cyclePairs()[:2], cyclePairs()))
}
