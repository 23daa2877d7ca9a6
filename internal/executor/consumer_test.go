package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

type onceQueue struct {
	item   domain.QueuedLoop
	served bool
	acked  []string
	cancel context.CancelFunc
}

func (q *onceQueue) Enqueue(context.Context, domain.ShardID, domain.ArbitrageLoop) error {
	return nil
}

func (q *onceQueue) Dequeue(ctx context.Context, _ time.Duration) (domain.QueuedLoop, error) {
	if q.served {
		return domain.QueuedLoop{}, domain.ErrQueueEmpty
	}
	q.served = true
	return q.item, nil
}

func (q *onceQueue) Ack(_ context.Context, id string) error {
	q.acked = append(q.acked, id)
	q.cancel()
	return nil
}

func Test_Consumer_ExecutesAndAcks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queue := &onceQueue{
		item:   domain.QueuedLoop{ID: "1-0", Shard: 1, Loop: testLoop()},
		cancel: cancel,
	}
	ledger := &memLedger{}
	engine := NewEngine(fullBooks(), &singleCred{}, &scriptedPlacer{}, ledger, &recordSink{}, 100, 0, discard())

	err := NewConsumer(queue, engine, discard()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{"1-0"}, queue.acked, "entry acked after terminal state")
	require.Len(t, ledger.records, 1)
	assert.Equal(t, domain.ShardID(1), ledger.records[0].Shard)
}
