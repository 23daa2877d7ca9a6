package domain

import "time"

// BookTop is the latest known top-of-book for one symbol: best bid and best
// ask with their quantities. Entries are overwritten in place by the owning
// shard; UpdatedAt increases monotonically per symbol.
type BookTop struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	BidQty    float64   `json:"bid_qty"`
	AskPrice  float64   `json:"ask_price"`
	AskQty    float64   `json:"ask_qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookReader is the read side of the live top-of-book cache. Readers tolerate
// the cache changing between a read and its use; a false second return means
// no entry exists yet for the symbol.
type BookReader interface {
	Top(symbol string) (BookTop, bool)
}
