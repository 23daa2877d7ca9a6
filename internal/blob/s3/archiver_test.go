package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

type captureWriter struct {
	path string
	body []byte
	fail bool
}

func (c *captureWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if c.fail {
		return errors.New("upload failed")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	c.path = path
	c.body = body
	return nil
}

type archiveLedger struct {
	records []domain.TradeRecord
	deleted time.Time
}

func (l *archiveLedger) Append(context.Context, domain.TradeRecord) error { return nil }

func (l *archiveLedger) ListRecent(context.Context, int) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (l *archiveLedger) SumNetProfit(context.Context, time.Time) (float64, error) {
	return 0, nil
}

func (l *archiveLedger) CountByStatus(context.Context, time.Time) (map[domain.TradeStatus]int64, error) {
	return nil, nil
}

func (l *archiveLedger) ListBefore(_ context.Context, before time.Time) ([]domain.TradeRecord, error) {
	var old []domain.TradeRecord
	for _, r := range l.records {
		if r.FinishedAt.Before(before) {
			old = append(old, r)
		}
	}
	return old, nil
}

func (l *archiveLedger) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	l.deleted = before
	var kept []domain.TradeRecord
	var n int64
	for _, r := range l.records {
		if r.FinishedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	l.records = kept
	return n, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(id string, finished time.Time) domain.TradeRecord {
	return domain.TradeRecord{
		ExecutionID: id,
		LoopKey:     "AB>BC>CA",
		Status:      domain.StatusCompleted,
		FinishedAt:  finished,
	}
}

func Test_Archive_UploadsAndSweeps(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ledger := &archiveLedger{records: []domain.TradeRecord{
		record("old-1", cutoff.Add(-48*time.Hour)),
		record("old-2", cutoff.Add(-time.Hour)),
		record("new-1", cutoff.Add(time.Hour)),
	}}
	writer := &captureWriter{}

	n, err := NewLedgerArchiver(writer, ledger, discard()).Archive(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "archive/trade_records/2026-08.jsonl", writer.path)

	// Two JSONL lines, decodable back into records.
	scanner := bufio.NewScanner(bytes.NewReader(writer.body))
	var ids []string
	for scanner.Scan() {
		var rec domain.TradeRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		ids = append(ids, rec.ExecutionID)
	}
	assert.Equal(t, []string{"old-1", "old-2"}, ids)

	// Retained record survives the sweep.
	require.Len(t, ledger.records, 1)
	assert.Equal(t, "new-1", ledger.records[0].ExecutionID)
}

func Test_Archive_FailedUploadKeepsLedger(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ledger := &archiveLedger{records: []domain.TradeRecord{
		record("old-1", cutoff.Add(-time.Hour)),
	}}

	_, err := NewLedgerArchiver(&captureWriter{fail: true}, ledger, discard()).Archive(context.Background(), cutoff)
	require.Error(t, err)
	assert.Len(t, ledger.records, 1, "nothing deleted when the upload fails")
	assert.True(t, ledger.deleted.IsZero())
}

func Test_Archive_NothingToDo(t *testing.T) {
	writer := &captureWriter{}
	n, err := NewLedgerArchiver(writer, &archiveLedger{}, discard()).Archive(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.path, "no upload for an empty batch")
}
