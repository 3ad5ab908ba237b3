package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

func testBatch(id int64) *domain.Batch {
	return &domain.Batch{
		BatchID:   id,
		StartTime: 1_700_000_000_000 + id,
		Phase:     domain.PhaseCommit,
		CreatedAt: 1_700_000_000_000 + id,
	}
}

func TestBatchStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBatchStore(pool)

	b := testBatch(1)
	b.SeedAccum[0] = 0xAB

	require.NoError(t, store.Insert(ctx, b))

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, b.BatchID, got.BatchID)
	assert.Equal(t, b.StartTime, got.StartTime)
	assert.Equal(t, domain.PhaseCommit, got.Phase)
	assert.Equal(t, b.SeedAccum, got.SeedAccum)
	assert.False(t, got.IsSettled)

	// Duplicate batch_id
	assert.ErrorIs(t, store.Insert(ctx, testBatch(1)), storage.ErrDuplicateKey)

	// Missing batch
	_, err = store.GetByID(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBatchStore_GetLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBatchStore(pool)

	_, err := store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, testBatch(1)))
	require.NoError(t, store.Insert(ctx, testBatch(2)))
	require.NoError(t, store.Insert(ctx, testBatch(3)))

	got, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.BatchID)
}

func TestBatchStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBatchStore(pool)

	b := testBatch(1)
	require.NoError(t, store.Insert(ctx, b))

	b.Phase = domain.PhaseSettled
	b.IsSettled = true
	b.RevealedCount = 7
	b.PriorityBidTotal = 12_345
	b.SeedAccum[31] = 0xFF
	require.NoError(t, store.Update(ctx, b))

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSettled, got.Phase)
	assert.True(t, got.IsSettled)
	assert.Equal(t, 7, got.RevealedCount)
	assert.Equal(t, uint64(12_345), got.PriorityBidTotal)
	assert.Equal(t, byte(0xFF), got.SeedAccum[31])

	assert.ErrorIs(t, store.Update(ctx, testBatch(99)), storage.ErrNotFound)
}
