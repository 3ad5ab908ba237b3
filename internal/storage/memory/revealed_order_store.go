package memory

import (
	"context"
	"sort"
	"sync"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// RevealedOrderStore is an in-memory implementation of storage.RevealedOrderStore.
type RevealedOrderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RevealedOrder // keyed by commit_id
}

// NewRevealedOrderStore creates a new in-memory revealed order store.
func NewRevealedOrderStore() *RevealedOrderStore {
	return &RevealedOrderStore{data: make(map[string]*domain.RevealedOrder)}
}

// Compile-time interface check.
var _ storage.RevealedOrderStore = (*RevealedOrderStore)(nil)

// Insert adds a revealed order. Returns ErrDuplicateKey if one already
// exists for the commit_id.
func (s *RevealedOrderStore) Insert(_ context.Context, o *domain.RevealedOrder) error {
	if o == nil || o.CommitID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.CommitID]; exists {
		return storage.ErrDuplicateKey
	}

	orderCopy := *o
	s.data[o.CommitID] = &orderCopy
	return nil
}

// GetByCommitID retrieves the revealed order of a commitment.
func (s *RevealedOrderStore) GetByCommitID(_ context.Context, commitID string) (*domain.RevealedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[commitID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	orderCopy := *o
	return &orderCopy, nil
}

// GetByBatch retrieves all revealed orders of a batch, ordered by reveal_index ASC.
func (s *RevealedOrderStore) GetByBatch(_ context.Context, batchID int64) ([]*domain.RevealedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RevealedOrder
	for _, o := range s.data {
		if o.BatchID == batchID {
			orderCopy := *o
			result = append(result, &orderCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].RevealIndex < result[j].RevealIndex })
	return result, nil
}
