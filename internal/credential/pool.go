// Package credential implements the API credential pool. Each credential has
// a fixed request budget per rolling window; Acquire hands out the first
// credential with remaining budget, counting the request as part of the same
// atomic step so concurrent callers can never over-spend one credential.
package credential

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// usage is the per-credential accounting state.
type usage struct {
	cred        domain.Credential
	requests    int
	windowStart time.Time
}

// Pool tracks request budgets for a fixed set of credentials. It is safe for
// concurrent use; the scan-and-increment in Acquire runs under one mutex.
type Pool struct {
	mu          sync.Mutex
	entries     []*usage
	cursor      int
	maxRequests int
	window      time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewPool creates a Pool over the given credentials with the given budget per
// rolling window. The credential set is fixed for the process lifetime.
func NewPool(creds []domain.Credential, maxRequests int, window time.Duration, logger *slog.Logger) *Pool {
	entries := make([]*usage, 0, len(creds))
	for _, c := range creds {
		entries = append(entries, &usage{cred: c})
	}
	return &Pool{
		entries:     entries,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "credential_pool")),
	}
}

// SetNow overrides the pool's clock. Test hook.
func (p *Pool) SetNow(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// Acquire scans credentials round-robin from the last handed-out position and
// returns the first whose window budget is not exhausted, incrementing its
// counter as part of selection. A credential whose window has elapsed since
// its last reset is reset to zero before the check. Returns
// ErrNoCredentialAvailable when every credential is exhausted; the caller
// must back off and retry.
func (p *Pool) Acquire() (domain.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return domain.Credential{}, domain.ErrNoCredentialAvailable
	}

	now := p.now()
	for i := 0; i < len(p.entries); i++ {
		idx := (p.cursor + i) % len(p.entries)
		e := p.entries[idx]

		if e.windowStart.IsZero() || now.Sub(e.windowStart) > p.window {
			e.requests = 0
			e.windowStart = now
		}
		if e.requests < p.maxRequests {
			e.requests++
			p.cursor = (idx + 1) % len(p.entries)
			return e.cred, nil
		}
	}

	p.logger.Warn("all credentials exhausted",
		slog.Int("credentials", len(p.entries)),
		slog.Int("max_requests", p.maxRequests),
	)
	return domain.Credential{}, domain.ErrNoCredentialAvailable
}

// Release refunds the request counted by Acquire when the caller did not end
// up spending it (used=false). A used credential needs no release.
func (p *Pool) Release(cred domain.Credential, used bool) {
	if used {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.cred.Key == cred.Key {
			if e.requests > 0 {
				e.requests--
			}
			return
		}
	}
}

// Remaining returns the unspent budget of the credential in its current
// window. Exposed for metrics and tests.
func (p *Pool) Remaining(cred domain.Credential) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for _, e := range p.entries {
		if e.cred.Key == cred.Key {
			if e.windowStart.IsZero() || now.Sub(e.windowStart) > p.window {
				return p.maxRequests
			}
			return p.maxRequests - e.requests
		}
	}
	return 0
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.entries)
}

// Compile-time interface check.
var _ domain.CredentialPool = (*Pool)(nil)
