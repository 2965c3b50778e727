package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainark-core/internal/domain"
)

func testSnapshot(computedAt int64, totalUSD float64) *domain.LiquiditySnapshot {
	return &domain.LiquiditySnapshot{
		TotalUSD:           decimal.NewFromFloat(totalUSD),
		LockActive:         totalUSD < 1_000_000,
		ProgressPercentage: totalUSD / 10_000,
		BalancesByChain: map[domain.ChainID][]domain.TreasuryBalance{
			domain.ChainEthereum: {
				{ChainID: domain.ChainEthereum, Symbol: "ETH"},
				{ChainID: domain.ChainEthereum, Symbol: "USDT"},
			},
			domain.ChainBSC: {
				{ChainID: domain.ChainBSC, Symbol: "BNB"},
			},
		},
		ComputedAt: computedAt,
	}
}

func TestSnapshotHistoryStore_AppendAndGetRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotHistoryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testSnapshot(1700000000000, 125_000)))
	require.NoError(t, store.Append(ctx, testSnapshot(1700000120000, 140_000)))
	require.NoError(t, store.Append(ctx, testSnapshot(1700000240000, 1_200_000)))

	snaps, err := store.GetRange(ctx, 1700000000000, 1700000120000)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, int64(1700000000000), snaps[0].ComputedAt)
	assert.Equal(t, int64(1700000120000), snaps[1].ComputedAt)
	assert.True(t, snaps[0].TotalUSD.Equal(decimal.NewFromInt(125_000)), "total = %s", snaps[0].TotalUSD)
	assert.True(t, snaps[0].LockActive)
	assert.InDelta(t, 12.5, snaps[0].ProgressPercentage, 0.001)
}

func TestSnapshotHistoryStore_GetRangeEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotHistoryStore(conn)
	snaps, err := store.GetRange(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestSnapshotHistoryStore_LockRelease(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotHistoryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testSnapshot(1700000360000, 1_500_000)))

	snaps, err := store.GetRange(ctx, 1700000360000, 1700000360000)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].LockActive)
}
