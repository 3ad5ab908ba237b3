// Package memory provides in-memory implementations of the storage
// interfaces. Used by tests and by the simulation driver; also the
// reference model the durable backends must agree with.
package memory

import (
	"context"
	"sync"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// BatchStore is an in-memory implementation of storage.BatchStore.
type BatchStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.Batch
	latest int64
}

// NewBatchStore creates a new in-memory batch store.
func NewBatchStore() *BatchStore {
	return &BatchStore{data: make(map[int64]*domain.Batch)}
}

// Compile-time interface check.
var _ storage.BatchStore = (*BatchStore)(nil)

// Insert adds a new batch. Returns ErrDuplicateKey if batch_id exists.
func (s *BatchStore) Insert(_ context.Context, b *domain.Batch) error {
	if b == nil || b.BatchID <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[b.BatchID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	batchCopy := *b
	s.data[b.BatchID] = &batchCopy
	if b.BatchID > s.latest {
		s.latest = b.BatchID
	}
	return nil
}

// GetByID retrieves a batch by its ID. Returns ErrNotFound if not exists.
func (s *BatchStore) GetByID(_ context.Context, batchID int64) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[batchID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	batchCopy := *b
	return &batchCopy, nil
}

// GetLatest retrieves the batch with the highest ID.
func (s *BatchStore) GetLatest(_ context.Context) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[s.latest]
	if !exists {
		return nil, storage.ErrNotFound
	}

	batchCopy := *b
	return &batchCopy, nil
}

// Update persists mutated fields of an existing batch.
func (s *BatchStore) Update(_ context.Context, b *domain.Batch) error {
	if b == nil || b.BatchID <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[b.BatchID]; !exists {
		return storage.ErrNotFound
	}

	batchCopy := *b
	s.data[b.BatchID] = &batchCopy
	return nil
}
