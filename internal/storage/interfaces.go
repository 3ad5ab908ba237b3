package storage

import (
	"context"

	"sealed-batch-dex/internal/domain"
)

// BatchStore provides access to batch storage. Batch records are
// append-only history; Update only mutates the live batch's phase,
// seed accumulator, counters, and settled flag.
type BatchStore interface {
	// Insert adds a new batch. Returns ErrDuplicateKey if batch_id exists.
	Insert(ctx context.Context, b *domain.Batch) error

	// GetByID retrieves a batch by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, batchID int64) (*domain.Batch, error)

	// GetLatest retrieves the batch with the highest ID. Returns
	// ErrNotFound when no batch exists yet (pre-genesis).
	GetLatest(ctx context.Context) (*domain.Batch, error)

	// Update persists mutated fields of an existing batch. Returns
	// ErrNotFound if the batch does not exist.
	Update(ctx context.Context, b *domain.Batch) error
}

// CommitmentStore provides access to commitment storage. Commitments
// are retained indefinitely for dispute resolution; only their status
// advances.
type CommitmentStore interface {
	// Insert adds a new commitment. Returns ErrDuplicateKey if commit_id exists.
	Insert(ctx context.Context, c *domain.Commitment) error

	// GetByID retrieves a commitment by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, commitID string) (*domain.Commitment, error)

	// GetByBatch retrieves all commitments of a batch, ordered by commit_id ASC.
	GetByBatch(ctx context.Context, batchID int64) ([]*domain.Commitment, error)

	// GetByBatchAndStatus retrieves a batch's commitments in the given
	// status, ordered by commit_id ASC.
	GetByBatchAndStatus(ctx context.Context, batchID int64, status domain.CommitmentStatus) ([]*domain.Commitment, error)

	// UpdateStatus sets the status of a commitment. Returns ErrNotFound
	// if the commitment does not exist. Legality of the transition is
	// the caller's responsibility under the single-writer model.
	UpdateStatus(ctx context.Context, commitID string, status domain.CommitmentStatus) error
}

// RevealedOrderStore provides access to revealed order storage.
type RevealedOrderStore interface {
	// Insert adds a revealed order. Returns ErrDuplicateKey if one
	// already exists for the commit_id.
	Insert(ctx context.Context, o *domain.RevealedOrder) error

	// GetByCommitID retrieves the revealed order of a commitment.
	// Returns ErrNotFound if not exists.
	GetByCommitID(ctx context.Context, commitID string) (*domain.RevealedOrder, error)

	// GetByBatch retrieves all revealed orders of a batch, ordered by
	// reveal_index ASC.
	GetByBatch(ctx context.Context, batchID int64) ([]*domain.RevealedOrder, error)
}

// PoolStore provides access to pool storage.
type PoolStore interface {
	// Insert adds a new pool. Returns ErrDuplicateKey if pool_id exists.
	Insert(ctx context.Context, p *domain.Pool) error

	// GetByID retrieves a pool by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, poolID string) (*domain.Pool, error)

	// List retrieves all pools, ordered by pool_id ASC.
	List(ctx context.Context) ([]*domain.Pool, error)

	// Update persists mutated reserves of an existing pool. Returns
	// ErrNotFound if the pool does not exist.
	Update(ctx context.Context, p *domain.Pool) error
}

// ExecutionOrderStore provides access to execution order storage.
// Execution orders are computed once per batch and never recomputed:
// Insert refuses a second write for the same batch.
type ExecutionOrderStore interface {
	// Insert adds a batch's execution order. Returns ErrDuplicateKey if
	// one already exists for the batch.
	Insert(ctx context.Context, e *domain.ExecutionOrder) error

	// GetByBatch retrieves a batch's execution order. Returns
	// ErrNotFound if not computed yet.
	GetByBatch(ctx context.Context, batchID int64) (*domain.ExecutionOrder, error)
}

// SettlementStore provides access to per-pool settlement history.
type SettlementStore interface {
	// InsertBulk adds the settlement records of one batch.
	InsertBulk(ctx context.Context, settlements []*domain.Settlement) error

	// GetByBatch retrieves a batch's settlements, ordered by pool_id ASC.
	GetByBatch(ctx context.Context, batchID int64) ([]*domain.Settlement, error)
}
