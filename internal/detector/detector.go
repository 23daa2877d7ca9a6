// Package detector finds triangular arbitrage loops among a shard's assigned
// pairs and scores them against the live top-of-book cache. Detection runs
// from scratch on every invocation; the underlying prices mutate continuously
// so nothing is memoized between runs.
package detector

import (
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// Detector scans pair sets for closed three-hop currency cycles.
type Detector struct {
	books   domain.BookReader
	feeRate float64
	now     func() time.Time
}

// New creates a Detector reading prices from books. feeRate is the per-hop
// trading fee as a fraction (0.001 = 0.1%).
func New(books domain.BookReader, feeRate float64) *Detector {
	return &Detector{books: books, feeRate: feeRate, now: time.Now}
}

// SetNow overrides the detector's clock. Test hook.
func (d *Detector) SetNow(now func() time.Time) { d.now = now }

// FindLoops returns every ordered triple of distinct pairs satisfying the
// chaining rule hop1.quote==hop2.base, hop2.quote==hop3.base,
// hop3.quote==hop1.base. Discovery order is deterministic in the input order
// (first-found wins), so repeated calls over identical input are
// reproducible. Cost is O(n³) over the assigned pairs, bounded by the
// shard's pair capacity.
func FindLoops(pairs []domain.TradingPair) []domain.ArbitrageLoop {
	var loops []domain.ArbitrageLoop
	for i, a := range pairs {
		for j, b := range pairs {
			if j == i || a.Quote != b.Base {
				continue
			}
			for k, c := range pairs {
				if k == i || k == j {
					continue
				}
				if b.Quote == c.Base && c.Quote == a.Base {
					loops = append(loops, domain.ArbitrageLoop{
						Pairs: [3]domain.TradingPair{a, b, c},
					})
				}
			}
		}
	}
	return loops
}

// EstimateProfit walks the loop against the given books starting from one
// unit of the funding currency: hop 1 buys through the first pair at the best
// ask, hops 2 and 3 unwind at the best bid, and each hop's executable price
// is scaled by 1-feeRate. The return is the profit ratio (final amount minus
// the starting unit); ok is false when any hop has no usable book entry.
func (d *Detector) EstimateProfit(loop domain.ArbitrageLoop) (profit float64, ok bool) {
	amount := 1.0
	for i := 0; i < 3; i++ {
		top, found := d.books.Top(loop.Pairs[i].Symbol)
		if !found {
			return 0, false
		}
		switch loop.Side(i) {
		case domain.SideBuy:
			if top.AskPrice <= 0 {
				return 0, false
			}
			amount /= top.AskPrice * (1 + d.feeRate)
		default:
			if top.BidPrice <= 0 {
				return 0, false
			}
			amount *= top.BidPrice * (1 - d.feeRate)
		}
	}
	return amount - 1, true
}

// Scan runs FindLoops over pairs and returns the loops whose estimated
// profit is strictly positive, stamped with the discovery time and estimate.
// Ties between equally profitable loops keep discovery order.
func (d *Detector) Scan(pairs []domain.TradingPair) []domain.ArbitrageLoop {
	now := d.now()
	var profitable []domain.ArbitrageLoop
	for _, loop := range FindLoops(pairs) {
		profit, ok := d.EstimateProfit(loop)
		if !ok || profit <= 0 {
			continue
		}
		loop.DiscoveredAt = now
		loop.EstProfit = profit
		profitable = append(profitable, loop)
	}
	return profitable
}
