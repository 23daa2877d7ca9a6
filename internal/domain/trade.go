package domain

import "time"

// TradeStatus is the terminal state of one executed loop.
type TradeStatus string

// StatusCompleted marks a loop whose three hops all executed.
const StatusCompleted TradeStatus = "completed"

// AbortedStatus builds the terminal status for a loop aborted at some hop,
// e.g. "aborted:MissingOrderBook".
func AbortedStatus(reason string) TradeStatus {
	return TradeStatus("aborted:" + reason)
}

// Aborted reports whether the status is a terminal abort.
func (s TradeStatus) Aborted() bool {
	return len(s) > 8 && s[:8] == "aborted:"
}

// HopFill is the realized price and quantity of one executed hop.
type HopFill struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
}

// TradeRecord is the immutable outcome of one loop execution attempt. Exactly
// one record is written per attempt, capturing whichever hops completed and
// the realized (or partial) profit.
type TradeRecord struct {
	ExecutionID string      `json:"execution_id"`
	LoopKey     string      `json:"loop_key"`
	Shard       ShardID     `json:"shard"`
	Hops        []HopFill   `json:"hops"`
	Stake       float64     `json:"stake"`
	NetProfit   float64     `json:"net_profit"`
	Status      TradeStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}
