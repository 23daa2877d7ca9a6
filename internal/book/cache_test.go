package book

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

func top(symbol string, bid, ask float64, ts time.Time) domain.BookTop {
	return domain.BookTop{
		Symbol:    symbol,
		BidPrice:  bid,
		BidQty:    1,
		AskPrice:  ask,
		AskQty:    1,
		UpdatedAt: ts,
	}
}

func Test_Update_And_Top(t *testing.T) {
	c := NewCache([]string{"BTCUSDT"})
	now := time.Now()

	_, ok := c.Top("BTCUSDT")
	assert.False(t, ok, "no entry before first update")

	require.True(t, c.Update(top("BTCUSDT", 29999, 30001, now)))

	got, ok := c.Top("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 29999.0, got.BidPrice)
	assert.Equal(t, 30001.0, got.AskPrice)
}

func Test_Update_DiscardsOutOfOrder(t *testing.T) {
	c := NewCache([]string{"ETHBTC"})
	now := time.Now()

	require.True(t, c.Update(top("ETHBTC", 0.05, 0.051, now)))
	assert.False(t, c.Update(top("ETHBTC", 0.04, 0.041, now.Add(-time.Second))),
		"older timestamp must be discarded")

	got, _ := c.Top("ETHBTC")
	assert.Equal(t, 0.05, got.BidPrice, "cache keeps the newer entry")

	// Equal timestamp is accepted (>= rule).
	assert.True(t, c.Update(top("ETHBTC", 0.052, 0.053, now)))
	got, _ = c.Top("ETHBTC")
	assert.Equal(t, 0.052, got.BidPrice)
}

func Test_Update_RegistersOnFirstMessage(t *testing.T) {
	c := NewCache(nil)
	require.True(t, c.Update(top("BNBUSDT", 300, 301, time.Now())))

	got, ok := c.Top("BNBUSDT")
	require.True(t, ok)
	assert.Equal(t, "BNBUSDT", got.Symbol)
	assert.Equal(t, 1, c.Len())
}

func Test_Drop(t *testing.T) {
	c := NewCache([]string{"A1B2", "C3D4"})
	c.Update(top("A1B2", 1, 2, time.Now()))

	c.Drop([]string{"A1B2"})

	_, ok := c.Top("A1B2")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func Test_ConcurrentReadersSingleWriter(t *testing.T) {
	c := NewCache([]string{"BTCUSDT"})
	start := time.Now()

	var wg sync.WaitGroup
	done := make(chan struct{})

	// Readers must always observe a fully formed entry or none at all.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if got, ok := c.Top("BTCUSDT"); ok {
					assert.Equal(t, got.BidPrice+2, got.AskPrice,
						"reader observed a torn entry")
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		p := float64(30000 + i)
		c.Update(top("BTCUSDT", p, p+2, start.Add(time.Duration(i)*time.Millisecond)))
	}
	close(done)
	wg.Wait()
}
