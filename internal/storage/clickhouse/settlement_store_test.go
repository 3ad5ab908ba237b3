package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed-batch-dex/internal/domain"
)

func TestSettlementStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op.
	require.NoError(t, store.InsertBulk(ctx, nil))

	settlements := []*domain.Settlement{
		{
			BatchID:          7,
			PoolID:           "USDC-SOL",
			ClearingPriceNum: 29_126_213,
			ClearingPriceDen: 30_000_000,
			Price:            0.9708,
			TotalIn:          30_000_000,
			TotalOut:         29_038_834,
			LPFee:            72_821,
			ProtocolFee:      14_557,
			Dust:             1,
			Included:         2,
			Excluded:         1,
			ReserveInAfter:   1_030_000_000,
			ReserveOutAfter:  970_946_609,
			ExecutedAt:       1_000_000,
		},
	}
	require.NoError(t, store.InsertBulk(ctx, settlements))

	got, err := store.GetByBatch(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, settlements[0], got[0])
}

func TestSettlementStore_GetByBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(conn)
	ctx := context.Background()

	// Two pools in batch 1, one in batch 2; pool IDs inserted out of
	// order to exercise the sort.
	require.NoError(t, store.InsertBulk(ctx, []*domain.Settlement{
		{BatchID: 1, PoolID: "USDC-WETH", Price: 0.5, TotalIn: 100, TotalOut: 50, Included: 1, ExecutedAt: 10},
		{BatchID: 1, PoolID: "USDC-SOL", Price: 1.0, TotalIn: 200, TotalOut: 200, Included: 2, ExecutedAt: 10},
	}))
	require.NoError(t, store.InsertBulk(ctx, []*domain.Settlement{
		{BatchID: 2, PoolID: "USDC-SOL", Price: 0.9, TotalIn: 300, TotalOut: 270, Included: 3, ExecutedAt: 20},
	}))

	got, err := store.GetByBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "USDC-SOL", got[0].PoolID)
	assert.Equal(t, "USDC-WETH", got[1].PoolID)
	assert.Equal(t, int64(1), got[0].BatchID)

	got, err = store.GetByBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(300), got[0].TotalIn)

	// Batch with no settlements.
	got, err = store.GetByBatch(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, got)
}
