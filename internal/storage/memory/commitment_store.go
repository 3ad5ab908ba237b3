package memory

import (
	"context"
	"sort"
	"sync"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// CommitmentStore is an in-memory implementation of storage.CommitmentStore.
type CommitmentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Commitment // keyed by commit_id
}

// NewCommitmentStore creates a new in-memory commitment store.
func NewCommitmentStore() *CommitmentStore {
	return &CommitmentStore{data: make(map[string]*domain.Commitment)}
}

// Compile-time interface check.
var _ storage.CommitmentStore = (*CommitmentStore)(nil)

// Insert adds a new commitment. Returns ErrDuplicateKey if commit_id exists.
func (s *CommitmentStore) Insert(_ context.Context, c *domain.Commitment) error {
	if c == nil || c.CommitID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.CommitID]; exists {
		return storage.ErrDuplicateKey
	}

	commitmentCopy := *c
	s.data[c.CommitID] = &commitmentCopy
	return nil
}

// GetByID retrieves a commitment by its ID. Returns ErrNotFound if not exists.
func (s *CommitmentStore) GetByID(_ context.Context, commitID string) (*domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[commitID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	commitmentCopy := *c
	return &commitmentCopy, nil
}

// GetByBatch retrieves all commitments of a batch, ordered by commit_id ASC.
func (s *CommitmentStore) GetByBatch(_ context.Context, batchID int64) ([]*domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Commitment
	for _, c := range s.data {
		if c.BatchID == batchID {
			commitmentCopy := *c
			result = append(result, &commitmentCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CommitID < result[j].CommitID })
	return result, nil
}

// GetByBatchAndStatus retrieves a batch's commitments in the given status.
func (s *CommitmentStore) GetByBatchAndStatus(_ context.Context, batchID int64, status domain.CommitmentStatus) ([]*domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Commitment
	for _, c := range s.data {
		if c.BatchID == batchID && c.Status == status {
			commitmentCopy := *c
			result = append(result, &commitmentCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CommitID < result[j].CommitID })
	return result, nil
}

// UpdateStatus sets the status of a commitment.
func (s *CommitmentStore) UpdateStatus(_ context.Context, commitID string, status domain.CommitmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[commitID]
	if !exists {
		return storage.ErrNotFound
	}

	c.Status = status
	return nil
}
