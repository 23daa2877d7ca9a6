package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// LedgerArchiver moves trade records past the retention horizon out of the
// primary ledger: old records are serialized to JSONL, uploaded to the
// object store, and deleted from the ledger only after the upload succeeded.
type LedgerArchiver struct {
	writer BlobWriter
	ledger domain.TradeLedger
	logger *slog.Logger
}

// NewLedgerArchiver creates a LedgerArchiver.
func NewLedgerArchiver(writer BlobWriter, ledger domain.TradeLedger, logger *slog.Logger) *LedgerArchiver {
	return &LedgerArchiver{
		writer: writer,
		ledger: ledger,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Archive uploads every record finished before the cutoff and then removes
// them from the ledger. Returns the number of records archived. A failed
// upload leaves the ledger untouched so the next run retries the same
// records.
func (a *LedgerArchiver) Archive(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.ledger.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.ledger.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(records)), fmt.Errorf("s3blob: archive retention sweep: %w", err)
	}

	a.logger.Info("ledger archived",
		slog.String("path", path),
		slog.Int("records", len(records)),
		slog.Int64("deleted", deleted))
	return int64(len(records)), nil
}

// Run archives on the given interval until ctx is cancelled, keeping
// retention worth of records in the primary ledger.
func (a *LedgerArchiver) Run(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := a.Archive(ctx, time.Now().Add(-retention)); err != nil {
			a.logger.Error("archive run failed", slog.Any("error", err))
		}
	}
}

// archivePath builds the object key, partitioned by the cutoff's year-month.
//
//	archive/trade_records/2026-08.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/trade_records/%s.jsonl", before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
