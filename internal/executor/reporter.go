package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// Reporter periodically summarizes ledger outcomes over a rolling window and
// publishes them as metrics.
type Reporter struct {
	ledger   domain.TradeLedger
	metrics  domain.MetricSink
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewReporter creates a Reporter summarizing the trailing window every
// interval.
func NewReporter(ledger domain.TradeLedger, metrics domain.MetricSink, window, interval time.Duration, logger *slog.Logger) *Reporter {
	return &Reporter{
		ledger:   ledger,
		metrics:  metrics,
		window:   window,
		interval: interval,
		logger:   logger.With(slog.String("component", "reporter")),
		now:      time.Now,
	}
}

// Run reports until ctx is cancelled. A failed report is logged and the next
// tick retries.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := r.report(ctx); err != nil {
			r.logger.Warn("report failed", slog.Any("error", err))
		}
	}
}

func (r *Reporter) report(ctx context.Context) error {
	since := r.now().Add(-r.window)

	profit, err := r.ledger.SumNetProfit(ctx, since)
	if err != nil {
		return err
	}
	counts, err := r.ledger.CountByStatus(ctx, since)
	if err != nil {
		return err
	}

	var completed, aborted int64
	for status, n := range counts {
		if status.Aborted() {
			aborted += n
		} else if status == domain.StatusCompleted {
			completed += n
		}
	}

	r.metrics.PushMetric("ledger_window_net_profit", profit)
	r.metrics.PushMetric("ledger_window_completed", float64(completed))
	r.metrics.PushMetric("ledger_window_aborted", float64(aborted))

	r.logger.Info("ledger window summary",
		slog.Duration("window", r.window),
		slog.Float64("net_profit", profit),
		slog.Int64("completed", completed),
		slog.Int64("aborted", aborted))
	return nil
}
