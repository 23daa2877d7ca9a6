package detector

import (
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// Sweep partitions loops into those still within ttl of their discovery and
// those whose opportunity has gone stale. A loop is expired iff
// now - discoveryTimestamp > ttl (strictly greater, so a loop exactly at the
// boundary is kept). Sweep is pure and idempotent: callers remove the expired
// set from persisted state, so a second sweep over the survivors expires
// nothing new.
func Sweep(loops []domain.ArbitrageLoop, now time.Time, ttl time.Duration) (kept, expired []domain.ArbitrageLoop) {
	for _, loop := range loops {
		if loop.Age(now) > ttl {
			expired = append(expired, loop)
		} else {
			kept = append(kept, loop)
		}
	}
	return kept, expired
}
