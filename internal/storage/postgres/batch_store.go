package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// BatchStore implements storage.BatchStore using PostgreSQL.
type BatchStore struct {
	pool *Pool
}

// NewBatchStore creates a new BatchStore.
func NewBatchStore(pool *Pool) *BatchStore {
	return &BatchStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BatchStore = (*BatchStore)(nil)

// Insert adds a new batch. Returns ErrDuplicateKey if batch_id exists.
func (s *BatchStore) Insert(ctx context.Context, b *domain.Batch) error {
	query := `
		INSERT INTO batches (
			batch_id, start_time, phase, seed_accum, priority_bid_total, revealed_count, is_settled, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		b.BatchID,
		b.StartTime,
		string(b.Phase),
		b.SeedAccum[:],
		int64(b.PriorityBidTotal),
		b.RevealedCount,
		b.IsSettled,
		b.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetByID retrieves a batch by its ID. Returns ErrNotFound if not exists.
func (s *BatchStore) GetByID(ctx context.Context, batchID int64) (*domain.Batch, error) {
	query := `
		SELECT batch_id, start_time, phase, seed_accum, priority_bid_total, revealed_count, is_settled, created_at
		FROM batches
		WHERE batch_id = $1
	`

	row := s.pool.QueryRow(ctx, query, batchID)
	b, err := scanBatch(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get batch by id: %w", err)
	}
	return b, nil
}

// GetLatest retrieves the batch with the highest ID.
func (s *BatchStore) GetLatest(ctx context.Context) (*domain.Batch, error) {
	query := `
		SELECT batch_id, start_time, phase, seed_accum, priority_bid_total, revealed_count, is_settled, created_at
		FROM batches
		ORDER BY batch_id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query)
	b, err := scanBatch(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest batch: %w", err)
	}
	return b, nil
}

// Update persists mutated fields of an existing batch.
func (s *BatchStore) Update(ctx context.Context, b *domain.Batch) error {
	query := `
		UPDATE batches
		SET phase = $2, seed_accum = $3, priority_bid_total = $4, revealed_count = $5, is_settled = $6
		WHERE batch_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		b.BatchID,
		string(b.Phase),
		b.SeedAccum[:],
		int64(b.PriorityBidTotal),
		b.RevealedCount,
		b.IsSettled,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanBatch scans a single row into a Batch.
func scanBatch(row pgx.Row) (*domain.Batch, error) {
	var b domain.Batch
	var phaseStr string
	var seed []byte
	var bidTotal int64

	err := row.Scan(
		&b.BatchID,
		&b.StartTime,
		&phaseStr,
		&seed,
		&bidTotal,
		&b.RevealedCount,
		&b.IsSettled,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Phase = domain.Phase(phaseStr)
	copy(b.SeedAccum[:], seed)
	b.PriorityBidTotal = uint64(bidTotal)
	return &b, nil
}
