package credential

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCreds(n int) []domain.Credential {
	creds := make([]domain.Credential, 0, n)
	for i := 0; i < n; i++ {
		creds = append(creds, domain.Credential{
			Key:    "key-" + string(rune('a'+i)),
			Secret: "secret-" + string(rune('a'+i)),
		})
	}
	return creds
}

func Test_Acquire_RoundRobin(t *testing.T) {
	p := NewPool(testCreds(3), 10, time.Minute, testLogger())

	c1, err := p.Acquire()
	require.NoError(t, err)
	c2, err := p.Acquire()
	require.NoError(t, err)
	c3, err := p.Acquire()
	require.NoError(t, err)

	assert.NotEqual(t, c1.Key, c2.Key)
	assert.NotEqual(t, c2.Key, c3.Key)

	c4, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, c1.Key, c4.Key, "scan wraps back to the first credential")
}

func Test_Acquire_NeverExceedsBudget(t *testing.T) {
	p := NewPool(testCreds(2), 3, time.Minute, testLogger())

	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		c, err := p.Acquire()
		require.NoError(t, err)
		seen[c.Key]++
	}
	for key, n := range seen {
		assert.LessOrEqual(t, n, 3, "credential %s over budget", key)
	}

	_, err := p.Acquire()
	assert.ErrorIs(t, err, domain.ErrNoCredentialAvailable)
}

func Test_Acquire_WindowReset(t *testing.T) {
	p := NewPool(testCreds(1), 2, time.Minute, testLogger())

	now := time.Now()
	p.SetNow(func() time.Time { return now })

	_, err := p.Acquire()
	require.NoError(t, err)
	_, err = p.Acquire()
	require.NoError(t, err)
	_, err = p.Acquire()
	require.ErrorIs(t, err, domain.ErrNoCredentialAvailable)

	// Advance past the window: counter is observably zero on next acquire.
	now = now.Add(time.Minute + time.Second)
	c, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, p.Remaining(c), "one request spent out of a fresh window")
}

func Test_Release_RefundsUnusedRequest(t *testing.T) {
	p := NewPool(testCreds(1), 1, time.Minute, testLogger())

	c, err := p.Acquire()
	require.NoError(t, err)
	_, err = p.Acquire()
	require.ErrorIs(t, err, domain.ErrNoCredentialAvailable)

	p.Release(c, false)
	_, err = p.Acquire()
	assert.NoError(t, err, "refunded request is available again")
}

func Test_Acquire_ConcurrentNeverOverspends(t *testing.T) {
	const budget = 50
	p := NewPool(testCreds(1), budget, time.Minute, testLogger())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := p.Acquire(); err == nil {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, budget, granted, "exactly the budget may be granted per window")
}

func Test_Acquire_EmptyPool(t *testing.T) {
	p := NewPool(nil, 10, time.Minute, testLogger())
	_, err := p.Acquire()
	assert.ErrorIs(t, err, domain.ErrNoCredentialAvailable)
}
