// Package executor drains the loop queue and executes each loop hop by hop
// against the live order-book cache, recording exactly one trade record per
// attempt.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// Abort reasons recorded in the trade status.
const (
	ReasonMissingOrderBook = "MissingOrderBook"
	ReasonOrderFailed      = "OrderFailed"
)

// Engine executes arbitrage loops. Each execution uses a single credential
// end to end so rate accounting stays coherent across the three hops.
type Engine struct {
	books   domain.BookReader
	creds   domain.CredentialPool
	orders  domain.OrderPlacer
	ledger  domain.TradeLedger
	metrics domain.MetricSink
	stake   float64
	feeRate float64
	logger  *slog.Logger
	now     func() time.Time

	executions atomic.Int64
}

// NewEngine creates an Engine. stake is the amount of funding currency
// committed to each loop; feeRate is the per-hop trading fee fraction.
func NewEngine(books domain.BookReader, creds domain.CredentialPool, orders domain.OrderPlacer, ledger domain.TradeLedger, metrics domain.MetricSink, stake, feeRate float64, logger *slog.Logger) *Engine {
	return &Engine{
		books:   books,
		creds:   creds,
		orders:  orders,
		ledger:  ledger,
		metrics: metrics,
		stake:   stake,
		feeRate: feeRate,
		logger:  logger.With(slog.String("component", "executor")),
		now:     time.Now,
	}
}

// SetNow overrides the engine's clock. Test hook.
func (e *Engine) SetNow(now func() time.Time) { e.now = now }

// Execute runs one loop to its terminal state and persists a single trade
// record capturing whichever hops completed. A missing cache entry or failed
// order aborts the loop with an "aborted:<reason>" status; neither is an
// error from the caller's perspective. The only error return is
// ErrNoCredentialAvailable, before anything has executed, so the caller can
// back off and retry the same loop.
func (e *Engine) Execute(ctx context.Context, shard domain.ShardID, loop domain.ArbitrageLoop) (domain.TradeRecord, error) {
	cred, err := e.creds.Acquire()
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("executor: acquire credential: %w", err)
	}

	used := false
	defer func() { e.creds.Release(cred, used) }()

	rec := domain.TradeRecord{
		ExecutionID: uuid.New().String(),
		LoopKey:     loop.Key(),
		Shard:       shard,
		Stake:       e.stake,
		StartedAt:   e.now(),
	}

	amount := e.stake
	status := domain.StatusCompleted
	for i := 0; i < 3; i++ {
		symbol := loop.Pairs[i].Symbol
		top, ok := e.books.Top(symbol)
		if !ok {
			status = domain.AbortedStatus(ReasonMissingOrderBook)
			e.logger.Warn("loop aborted, no order book",
				slog.String("loop", rec.LoopKey),
				slog.String("symbol", symbol),
				slog.Int("hops_done", i))
			break
		}

		side := loop.Side(i)
		var price, qty float64
		if side == domain.SideBuy {
			price = top.AskPrice
			qty = amount / price
		} else {
			price = top.BidPrice
			qty = amount
		}

		result, err := e.orders.PlaceOrder(ctx, domain.OrderRequest{
			Symbol:   symbol,
			Side:     side,
			Quantity: qty,
			Price:    price,
		}, cred)
		used = true
		if err != nil {
			status = domain.AbortedStatus(ReasonOrderFailed)
			e.logger.Warn("loop aborted, order failed",
				slog.String("loop", rec.LoopKey),
				slog.String("symbol", symbol),
				slog.Int("hops_done", i),
				slog.Any("error", err))
			break
		}

		fillPrice, fillQty := result.FilledPrice, result.FilledQty
		if fillQty <= 0 {
			fillPrice, fillQty = price, qty
		}
		rec.Hops = append(rec.Hops, domain.HopFill{
			Symbol:   symbol,
			Side:     side,
			Price:    fillPrice,
			Quantity: fillQty,
		})

		if side == domain.SideBuy {
			amount = fillQty * (1 - e.feeRate)
		} else {
			amount = fillPrice * fillQty * (1 - e.feeRate)
		}
	}

	rec.Status = status
	rec.FinishedAt = e.now()
	if status == domain.StatusCompleted {
		rec.NetProfit = amount - e.stake
	}

	if err := e.ledger.Append(ctx, rec); err != nil {
		// Not re-attempted: a retry could double-record the trade.
		e.logger.Error("ledger append failed",
			slog.String("execution_id", rec.ExecutionID),
			slog.Any("error", fmt.Errorf("%w: %w", domain.ErrLedgerWrite, err)))
	}

	e.metrics.PushMetric("executor_executions_total", float64(e.executions.Add(1)))
	e.metrics.PushMetric("executor_last_net_profit", rec.NetProfit)

	e.logger.Info("loop executed",
		slog.String("execution_id", rec.ExecutionID),
		slog.String("loop", rec.LoopKey),
		slog.String("status", string(rec.Status)),
		slog.Int("hops", len(rec.Hops)),
		slog.Float64("net_profit", rec.NetProfit))
	return rec, nil
}

// IsNoCredential reports whether err means the credential pool is exhausted.
func IsNoCredential(err error) bool {
	return errors.Is(err, domain.ErrNoCredentialAvailable)
}
