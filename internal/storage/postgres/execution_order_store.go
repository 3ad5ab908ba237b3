package postgres

import (
	"context"
	"fmt"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// ExecutionOrderStore implements storage.ExecutionOrderStore using PostgreSQL.
type ExecutionOrderStore struct {
	pool *Pool
}

// NewExecutionOrderStore creates a new ExecutionOrderStore.
func NewExecutionOrderStore(pool *Pool) *ExecutionOrderStore {
	return &ExecutionOrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionOrderStore = (*ExecutionOrderStore)(nil)

// Insert adds a batch's execution order. Returns ErrDuplicateKey if one
// already exists for the batch; the permutation is never recomputed.
func (s *ExecutionOrderStore) Insert(ctx context.Context, e *domain.ExecutionOrder) error {
	query := `
		INSERT INTO execution_orders (batch_id, seed, permutation, computed_at)
		VALUES ($1, $2, $3, $4)
	`

	perm := make([]int64, len(e.Permutation))
	for i, v := range e.Permutation {
		perm[i] = int64(v)
	}

	_, err := s.pool.Exec(ctx, query,
		e.BatchID,
		e.Seed[:],
		perm,
		e.ComputedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert execution order: %w", err)
	}
	return nil
}

// GetByBatch retrieves a batch's execution order.
func (s *ExecutionOrderStore) GetByBatch(ctx context.Context, batchID int64) (*domain.ExecutionOrder, error) {
	query := `
		SELECT batch_id, seed, permutation, computed_at
		FROM execution_orders
		WHERE batch_id = $1
	`

	var e domain.ExecutionOrder
	var seed []byte
	var perm []int64

	err := s.pool.QueryRow(ctx, query, batchID).Scan(
		&e.BatchID,
		&seed,
		&perm,
		&e.ComputedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get execution order by batch: %w", err)
	}

	copy(e.Seed[:], seed)
	e.Permutation = make([]int, len(perm))
	for i, v := range perm {
		e.Permutation[i] = int(v)
	}
	return &e, nil
}
