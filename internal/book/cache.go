// Package book implements the in-process top-of-book cache a shard maintains
// for its assigned symbols. The cache is arena-style: each registered symbol
// owns one slot holding an atomic pointer to the latest BookTop, so the
// single writer (the owning shard) swaps entries in place and readers (the
// detector and the execution engine) load them without locks.
package book

import (
	"sync"
	"sync/atomic"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// Cache is the live top-of-book store for one shard. Slots are registered by
// the owning shard when an assignment is applied; registration is the only
// operation that takes the write lock, keeping updates and reads off it.
type Cache struct {
	mu    sync.RWMutex
	slots map[string]*atomic.Pointer[domain.BookTop]
}

// NewCache creates a cache with slots pre-registered for the given symbols.
func NewCache(symbols []string) *Cache {
	c := &Cache{slots: make(map[string]*atomic.Pointer[domain.BookTop], len(symbols))}
	for _, s := range symbols {
		c.slots[s] = &atomic.Pointer[domain.BookTop]{}
	}
	return c
}

// Register ensures a slot exists for symbol. Called by the owning shard only,
// when an assignment adds symbols.
func (c *Cache) Register(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.slots[symbol]; !ok {
		c.slots[symbol] = &atomic.Pointer[domain.BookTop]{}
	}
}

// Drop removes the slots for symbols no longer assigned to the shard. Called
// only at redistribution boundaries, never mid-cycle.
func (c *Cache) Drop(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		delete(c.slots, s)
	}
}

// Update overwrites the entry for top.Symbol. Updates carrying a timestamp
// older than the cached entry are discarded (out-of-order protection) and
// false is returned. Updates for unregistered symbols register the slot on
// first message.
func (c *Cache) Update(top domain.BookTop) bool {
	c.mu.RLock()
	slot, ok := c.slots[top.Symbol]
	c.mu.RUnlock()
	if !ok {
		c.Register(top.Symbol)
		c.mu.RLock()
		slot = c.slots[top.Symbol]
		c.mu.RUnlock()
	}

	// Single writer per symbol: load-then-store needs no CAS loop.
	if cur := slot.Load(); cur != nil && top.UpdatedAt.Before(cur.UpdatedAt) {
		return false
	}
	slot.Store(&top)
	return true
}

// Top returns the latest entry for symbol. The second return is false when
// the symbol has no entry yet. Stale entries are retained until overwritten;
// staleness is the consumer's concern.
func (c *Cache) Top(symbol string) (domain.BookTop, bool) {
	c.mu.RLock()
	slot, ok := c.slots[symbol]
	c.mu.RUnlock()
	if !ok {
		return domain.BookTop{}, false
	}
	cur := slot.Load()
	if cur == nil {
		return domain.BookTop{}, false
	}
	return *cur, true
}

// Symbols returns the registered symbols.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.slots))
	for s := range c.slots {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered slots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

// Compile-time interface check.
var _ domain.BookReader = (*Cache)(nil)
