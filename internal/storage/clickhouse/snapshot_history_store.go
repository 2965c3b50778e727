package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/observability"
	"brainark-core/internal/storage"
)

// SnapshotHistoryStore implements storage.SnapshotHistoryStore using
// ClickHouse. Only the aggregate row of each snapshot is archived;
// per-instrument balances stay in process.
type SnapshotHistoryStore struct {
	conn *Conn
}

// NewSnapshotHistoryStore creates a new SnapshotHistoryStore.
func NewSnapshotHistoryStore(conn *Conn) *SnapshotHistoryStore {
	return &SnapshotHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotHistoryStore = (*SnapshotHistoryStore)(nil)

// Append stores one snapshot's aggregate row.
func (s *SnapshotHistoryStore) Append(ctx context.Context, snap *domain.LiquiditySnapshot) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO liquidity_snapshots (
			computed_at, total_usd, lock_active, progress_percentage, chains, instruments
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	var instruments uint32
	for _, list := range snap.BalancesByChain {
		instruments += uint32(len(list))
	}
	total, _ := snap.TotalUSD.Float64()

	err = batch.Append(
		uint64(snap.ComputedAt),
		total,
		snap.LockActive,
		snap.ProgressPercentage,
		uint32(len(snap.BalancesByChain)),
		instruments,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRange retrieves aggregate rows computed within [start, end]
// (inclusive, ms), ordered by computed_at ASC. Per-instrument
// balances are not archived, so BalancesByChain is nil on read.
func (s *SnapshotHistoryStore) GetRange(ctx context.Context, start, end int64) ([]*domain.LiquiditySnapshot, error) {
	query := `
		SELECT computed_at, total_usd, lock_active, progress_percentage
		FROM liquidity_snapshots
		WHERE computed_at >= ? AND computed_at <= ?
		ORDER BY computed_at ASC
	`

	queryStart := time.Now()
	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	observability.RecordDBQuery("clickhouse", "select", time.Since(queryStart).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query snapshot range: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.LiquiditySnapshot
	for rows.Next() {
		var (
			computedAt uint64
			total      float64
			lockActive bool
			progress   float64
		)
		if err := rows.Scan(&computedAt, &total, &lockActive, &progress); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, &domain.LiquiditySnapshot{
			TotalUSD:           decimal.NewFromFloat(total),
			LockActive:         lockActive,
			ProgressPercentage: progress,
			ComputedAt:         int64(computedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}
