package distributor

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

type stubSource struct {
	pairs []domain.TradingPair
}

func (s *stubSource) ActivePairs(context.Context) ([]domain.TradingPair, error) {
	return append([]domain.TradingPair(nil), s.pairs...), nil
}

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
	ids := make([]domain.ShardID, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

type stubLocks struct {
	held bool
}

func (s *stubLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if s.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

type recordSink struct {
	metrics map[string]float64
}

func (r *recordSink) PushMetric(name string, value float64) {
	if r.metrics == nil {
		r.metrics = map[string]float64{}
	}
	r.metrics[name] = value
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Test_Cycle_PublishesWholeDocuments(t *testing.T) {
	source := &stubSource{pairs: makePairs(12)}
	store := &memStore{docs: map[domain.ShardID]domain.ShardDocument{
		0: {Shard: 0, Load: 0.8, Pairs: makePairs(3)},
		1: {Shard: 1, Load: 0.2},
	}}
	sink := &recordSink{}
	r := NewRunner(source, store, &stubLocks{}, sink, 2, 10, time.Minute, discard())

	require.NoError(t, r.Cycle(context.Background()))

	total := 0
	seen := map[string]bool{}
	for _, doc := range store.docs {
		assert.False(t, doc.UpdatedAt.IsZero())
		total += len(doc.Pairs)
		for _, p := range doc.Pairs {
			assert.False(t, seen[p.Symbol], "pair %s on two shards", p.Symbol)
			seen[p.Symbol] = true
		}
	}
	assert.Equal(t, 12, total, "old assignment fully replaced, not merged")
	assert.Equal(t, 12.0, sink.metrics["distributor_active_pairs"])
	assert.Equal(t, 0.0, sink.metrics["distributor_unassigned_pairs"])
}

func Test_Cycle_CapacityOverflowPublishesPartial(t *testing.T) {
	source := &stubSource{pairs: makePairs(25)}
	store := &memStore{}
	sink := &recordSink{}
	r := NewRunner(source, store, &stubLocks{}, sink, 2, 10, time.Minute, discard())

	err := r.Cycle(context.Background())
	ce, ok := domain.IsCapacityExceeded(err)
	require.True(t, ok)
	assert.Len(t, ce.Unassigned, 5)

	total := 0
	for _, doc := range store.docs {
		total += len(doc.Pairs)
	}
	assert.Equal(t, 20, total, "partial assignment is still published")
	assert.Equal(t, 5.0, sink.metrics["distributor_unassigned_pairs"])
}

func Test_Cycle_SkipsWhenLockHeld(t *testing.T) {
	source := &stubSource{pairs: makePairs(4)}
	store := &memStore{}
	r := NewRunner(source, store, &stubLocks{held: true}, &recordSink{}, 2, 10, time.Minute, discard())

	require.NoError(t, r.Cycle(context.Background()))
	assert.Empty(t, store.docs, "a skipped cycle publishes nothing")
}

func Test_Cycle_DropsInvalidPairs(t *testing.T) {
	source := &stubSource{pairs: []domain.TradingPair{
		{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT"},
		{Symbol: "BADBAD", Base: "BAD", Quote: "BAD"},
		{Symbol: "", Base: "X", Quote: "Y"},
	}}
	store := &memStore{}
	r := NewRunner(source, store, &stubLocks{}, &recordSink{}, 1, 10, time.Minute, discard())

	require.NoError(t, r.Cycle(context.Background()))
	require.Len(t, store.docs[0].Pairs, 1)
	assert.Equal(t, "ETHUSDT", store.docs[0].Pairs[0].Symbol)
}
