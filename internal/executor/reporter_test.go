package executor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

func TestReporterSummarizesWindow(t *testing.T) {
	ledger := &memLedger{records: []domain.TradeRecord{
		{Status: domain.StatusCompleted, NetProfit: 1.5},
		{Status: domain.StatusCompleted, NetProfit: -0.5},
		{Status: domain.TradeStatus("aborted:order_failed")},
	}}
	sink := &recordSink{}

	r := NewReporter(ledger, sink, time.Hour, time.Minute, slog.Default())
	require.NoError(t, r.report(context.Background()))

	require.InDelta(t, 1.0, sink.metrics["ledger_window_net_profit"], 1e-9)
	require.Equal(t, 2.0, sink.metrics["ledger_window_completed"])
	require.Equal(t, 1.0, sink.metrics["ledger_window_aborted"])
}
