package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrConfig                = errors.New("invalid configuration")
	ErrNoCredentialAvailable = errors.New("no credential available")
	ErrMissingOrderBook      = errors.New("missing order book")
	ErrLedgerWrite           = errors.New("ledger write failed")
	ErrFeedDisconnect        = errors.New("feed disconnected")
	ErrLockHeld              = errors.New("lock already held")
	ErrQueueEmpty            = errors.New("queue empty")
)

// CapacityExceededError is returned by the distributor when the total shard
// capacity cannot hold every active pair. It carries the pairs that could not
// be placed so the operator sees exactly what is unassigned.
type CapacityExceededError struct {
	Unassigned []TradingPair
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d pairs unassigned", len(e.Unassigned))
}

// IsCapacityExceeded reports whether err is a CapacityExceededError and
// returns it if so.
func IsCapacityExceeded(err error) (*CapacityExceededError, bool) {
	var ce *CapacityExceededError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
