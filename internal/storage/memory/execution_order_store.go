package memory

import (
	"context"
	"sync"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// ExecutionOrderStore is an in-memory implementation of storage.ExecutionOrderStore.
type ExecutionOrderStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.ExecutionOrder // keyed by batch_id
}

// NewExecutionOrderStore creates a new in-memory execution order store.
func NewExecutionOrderStore() *ExecutionOrderStore {
	return &ExecutionOrderStore{data: make(map[int64]*domain.ExecutionOrder)}
}

// Compile-time interface check.
var _ storage.ExecutionOrderStore = (*ExecutionOrderStore)(nil)

// Insert adds a batch's execution order. Returns ErrDuplicateKey if one
// already exists for the batch: the shuffle is never recomputed.
func (s *ExecutionOrderStore) Insert(_ context.Context, e *domain.ExecutionOrder) error {
	if e == nil || e.BatchID <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.BatchID]; exists {
		return storage.ErrDuplicateKey
	}

	orderCopy := *e
	orderCopy.Permutation = append([]int(nil), e.Permutation...)
	s.data[e.BatchID] = &orderCopy
	return nil
}

// GetByBatch retrieves a batch's execution order.
func (s *ExecutionOrderStore) GetByBatch(_ context.Context, batchID int64) (*domain.ExecutionOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[batchID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	orderCopy := *e
	orderCopy.Permutation = append([]int(nil), e.Permutation...)
	return &orderCopy, nil
}
