package memory

import (
	"context"
	"sort"
	"sync"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// SettlementStore is an in-memory implementation of storage.SettlementStore.
type SettlementStore struct {
	mu   sync.RWMutex
	data map[int64][]*domain.Settlement // keyed by batch_id
}

// NewSettlementStore creates a new in-memory settlement store.
func NewSettlementStore() *SettlementStore {
	return &SettlementStore{data: make(map[int64][]*domain.Settlement)}
}

// Compile-time interface check.
var _ storage.SettlementStore = (*SettlementStore)(nil)

// InsertBulk adds the settlement records of one batch.
func (s *SettlementStore) InsertBulk(_ context.Context, settlements []*domain.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range settlements {
		if st == nil || st.BatchID <= 0 || st.PoolID == "" {
			return storage.ErrInvalidInput
		}
		settlementCopy := *st
		s.data[st.BatchID] = append(s.data[st.BatchID], &settlementCopy)
	}
	return nil
}

// GetByBatch retrieves a batch's settlements, ordered by pool_id ASC.
func (s *SettlementStore) GetByBatch(_ context.Context, batchID int64) ([]*domain.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Settlement
	for _, st := range s.data[batchID] {
		settlementCopy := *st
		result = append(result, &settlementCopy)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].PoolID < result[j].PoolID })
	return result, nil
}
