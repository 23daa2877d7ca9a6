// Package domain defines the core entities of the arbitrage engine and the
// interfaces of its external collaborators (shard configuration store, trade
// ledger, metric sink, order placement). Concrete implementations live in
// internal/store, internal/metrics, and internal/platform.
package domain

import "time"

// TradingPair is one market instrument on the exchange. Pairs are created
// from the exchange metadata refresh and are immutable afterwards.
type TradingPair struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// Valid reports whether the pair is well formed: a non-empty globally unique
// symbol and distinct base/quote assets.
func (p TradingPair) Valid() bool {
	return p.Symbol != "" && p.Base != "" && p.Quote != "" && p.Base != p.Quote
}

// ShardID identifies one market-data shard.
type ShardID int

// ShardAssignment is the ownership of a set of pairs by one shard. Every
// active pair is assigned to exactly one shard at any instant; the whole
// assignment is replaced on each redistribution cycle, never merged.
type ShardAssignment struct {
	Shard ShardID       `json:"shard"`
	Pairs []TradingPair `json:"pairs"`
}

// ShardDocument is the persisted per-shard state: the current assignment,
// the loops the shard has discovered, and the shard's reported load. It is
// read and written as a whole document.
type ShardDocument struct {
	Shard     ShardID         `json:"shard"`
	Pairs     []TradingPair   `json:"pairs"`
	Loops     []ArbitrageLoop `json:"loops"`
	Load      float64         `json:"load"`
	UpdatedAt time.Time       `json:"updated_at"`
}
