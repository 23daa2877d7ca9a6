// Package distributor assigns the universe of active trading pairs to the
// market-data shards. Each cycle replaces every shard's assignment as a whole
// document; assignments are never patched incrementally.
package distributor

import (
	"math/rand"
	"sort"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// Redistribute assigns every pair to exactly one shard. Shards are ordered
// ascending by reported load (shard id breaks ties) and filled greedily up to
// capacity pairs each; pair order is shuffled with rng first so repeated
// cycles do not bias the same pairs onto the same shards. When total capacity
// cannot hold every pair the partial assignment is still returned together
// with a CapacityExceededError naming the unassigned remainder.
func Redistribute(rng *rand.Rand, pairs []domain.TradingPair, shardLoads map[domain.ShardID]float64, capacity int) (map[domain.ShardID][]domain.TradingPair, error) {
	shards := make([]domain.ShardID, 0, len(shardLoads))
	for id := range shardLoads {
		shards = append(shards, id)
	}
	sort.Slice(shards, func(i, j int) bool {
		li, lj := shardLoads[shards[i]], shardLoads[shards[j]]
		if li != lj {
			return li < lj
		}
		return shards[i] < shards[j]
	})

	shuffled := append([]domain.TradingPair(nil), pairs...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	assignment := make(map[domain.ShardID][]domain.TradingPair, len(shards))
	for _, id := range shards {
		assignment[id] = nil
	}

	next := 0
	var unassigned []domain.TradingPair
	for _, p := range shuffled {
		for next < len(shards) && len(assignment[shards[next]]) >= capacity {
			next++
		}
		if next == len(shards) {
			unassigned = append(unassigned, p)
			continue
		}
		id := shards[next]
		assignment[id] = append(assignment[id], p)
	}

	if len(unassigned) > 0 {
		return assignment, &domain.CapacityExceededError{Unassigned: unassigned}
	}
	return assignment, nil
}
