package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// TradeLedger implements domain.TradeLedger on the trade_records table.
// Records are append-only; the core never updates or deletes a row, the
// archiver's retention sweep is the only deleter.
type TradeLedger struct {
	pool *pgxpool.Pool
}

// NewTradeLedger creates a TradeLedger backed by the given connection pool.
func NewTradeLedger(pool *pgxpool.Pool) *TradeLedger {
	return &TradeLedger{pool: pool}
}

const recordSelectCols = `execution_id, loop_key, shard, hops, stake,
	net_profit, status, started_at, finished_at`

func scanRecordRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var records []domain.TradeRecord
	for rows.Next() {
		var (
			rec  domain.TradeRecord
			hops []byte
		)
		if err := rows.Scan(
			&rec.ExecutionID, &rec.LoopKey, &rec.Shard, &hops, &rec.Stake,
			&rec.NetProfit, &rec.Status, &rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(hops, &rec.Hops); err != nil {
			return nil, fmt.Errorf("decode hops for %s: %w", rec.ExecutionID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Append inserts one trade record.
func (l *TradeLedger) Append(ctx context.Context, rec domain.TradeRecord) error {
	hops, err := json.Marshal(rec.Hops)
	if err != nil {
		return fmt.Errorf("postgres: encode hops for %s: %w", rec.ExecutionID, err)
	}

	const query = `
		INSERT INTO trade_records (
			execution_id, loop_key, shard, hops, stake,
			net_profit, status, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = l.pool.Exec(ctx, query,
		rec.ExecutionID, rec.LoopKey, int(rec.Shard), hops, rec.Stake,
		rec.NetProfit, string(rec.Status), rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append record %s: %w", rec.ExecutionID, err)
	}
	return nil
}

// ListRecent returns the newest records by finish time, up to limit.
func (l *TradeLedger) ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM trade_records
		ORDER BY finished_at DESC
		LIMIT $1`, recordSelectCols)
	rows, err := l.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent records: %w", err)
	}
	return records, nil
}

// SumNetProfit totals net profit over records finished at or after since.
func (l *TradeLedger) SumNetProfit(ctx context.Context, since time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(net_profit), 0) FROM trade_records
		WHERE finished_at >= $1`
	var sum float64
	if err := l.pool.QueryRow(ctx, query, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: sum net profit: %w", err)
	}
	return sum, nil
}

// CountByStatus counts records finished at or after since, grouped by status.
func (l *TradeLedger) CountByStatus(ctx context.Context, since time.Time) (map[domain.TradeStatus]int64, error) {
	const query = `
		SELECT status, COUNT(*) FROM trade_records
		WHERE finished_at >= $1
		GROUP BY status`
	rows, err := l.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TradeStatus]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: count by status: %w", err)
		}
		counts[domain.TradeStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count by status: %w", err)
	}
	return counts, nil
}

// ListBefore returns every record finished strictly before the cutoff,
// oldest first, for the archiver.
func (l *TradeLedger) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM trade_records
		WHERE finished_at < $1
		ORDER BY finished_at ASC`, recordSelectCols)
	rows, err := l.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records before %s: %w", before, err)
	}
	defer rows.Close()

	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records before %s: %w", before, err)
	}
	return records, nil
}

// DeleteBefore removes every record finished strictly before the cutoff and
// returns the number deleted.
func (l *TradeLedger) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM trade_records WHERE finished_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete records before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.TradeLedger = (*TradeLedger)(nil)
