package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

func TestExecutionOrderStore_WriteOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seedBatchAndPool(t, ctx, pool)
	store := NewExecutionOrderStore(pool)

	e := &domain.ExecutionOrder{
		BatchID:     1,
		Seed:        domain.Secret{0x5E},
		Permutation: []int{2, 0, 1},
		ComputedAt:  1_700_000_090_000,
	}
	require.NoError(t, store.Insert(ctx, e))

	got, err := store.GetByBatch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, e.Seed, got.Seed)
	assert.Equal(t, []int{2, 0, 1}, got.Permutation)

	// The permutation is computed once and never replaced.
	again := &domain.ExecutionOrder{BatchID: 1, Permutation: []int{0, 1, 2}}
	assert.ErrorIs(t, store.Insert(ctx, again), storage.ErrDuplicateKey)

	_, err = store.GetByBatch(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
