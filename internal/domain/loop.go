package domain

import "time"

// OrderSide is the direction of one hop.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// ArbitrageLoop is an ordered triple of pairs forming a closed three-hop
// currency cycle: the quote asset of hop i equals the base asset of hop i+1
// (mod 3). EstProfit is the fee-adjusted profit ratio estimated at discovery;
// it is recomputed on every detection run, never carried stale.
type ArbitrageLoop struct {
	Pairs        [3]TradingPair `json:"pairs"`
	DiscoveredAt time.Time      `json:"discovered_at"`
	EstProfit    float64        `json:"est_profit"`
}

// Key returns a stable identity for the loop: the ordered symbol triple.
// Rotations of the same cycle have distinct keys because they start from a
// different funding currency.
func (l ArbitrageLoop) Key() string {
	return l.Pairs[0].Symbol + ">" + l.Pairs[1].Symbol + ">" + l.Pairs[2].Symbol
}

// Chains reports whether the triple satisfies the quote/base chaining rule.
func (l ArbitrageLoop) Chains() bool {
	for i := 0; i < 3; i++ {
		if l.Pairs[i].Quote != l.Pairs[(i+1)%3].Base {
			return false
		}
	}
	return true
}

// Side returns the execution side of hop i. The first hop buys into the loop
// at the ask; the remaining hops unwind at the bid.
func (l ArbitrageLoop) Side(i int) OrderSide {
	if i == 0 {
		return SideBuy
	}
	return SideSell
}

// Age returns how long ago the loop was discovered.
func (l ArbitrageLoop) Age(now time.Time) time.Duration {
	return now.Sub(l.DiscoveredAt)
}
