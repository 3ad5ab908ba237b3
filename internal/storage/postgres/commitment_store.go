package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// CommitmentStore implements storage.CommitmentStore using PostgreSQL.
type CommitmentStore struct {
	pool *Pool
}

// NewCommitmentStore creates a new CommitmentStore.
func NewCommitmentStore(pool *Pool) *CommitmentStore {
	return &CommitmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CommitmentStore = (*CommitmentStore)(nil)

// Insert adds a new commitment. Returns ErrDuplicateKey if commit_id exists.
func (s *CommitmentStore) Insert(ctx context.Context, c *domain.Commitment) error {
	query := `
		INSERT INTO commitments (
			commit_id, commit_hash, pool_id, batch_id, deposit_amount, depositor, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		c.CommitID,
		c.CommitHash[:],
		c.PoolID,
		c.BatchID,
		int64(c.DepositAmount),
		c.Depositor,
		string(c.Status),
		c.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert commitment: %w", err)
	}
	return nil
}

// GetByID retrieves a commitment by its ID. Returns ErrNotFound if not exists.
func (s *CommitmentStore) GetByID(ctx context.Context, commitID string) (*domain.Commitment, error) {
	query := `
		SELECT commit_id, commit_hash, pool_id, batch_id, deposit_amount, depositor, status, created_at
		FROM commitments
		WHERE commit_id = $1
	`

	rows, err := s.pool.Query(ctx, query, commitID)
	if err != nil {
		return nil, fmt.Errorf("get commitment by id: %w", err)
	}
	defer rows.Close()

	cs, err := scanCommitments(rows)
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, storage.ErrNotFound
	}
	return cs[0], nil
}

// GetByBatch retrieves all commitments of a batch, ordered by commit_id ASC.
func (s *CommitmentStore) GetByBatch(ctx context.Context, batchID int64) ([]*domain.Commitment, error) {
	query := `
		SELECT commit_id, commit_hash, pool_id, batch_id, deposit_amount, depositor, status, created_at
		FROM commitments
		WHERE batch_id = $1
		ORDER BY commit_id ASC
	`

	rows, err := s.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("get commitments by batch: %w", err)
	}
	defer rows.Close()

	return scanCommitments(rows)
}

// GetByBatchAndStatus retrieves a batch's commitments in the given
// status, ordered by commit_id ASC.
func (s *CommitmentStore) GetByBatchAndStatus(ctx context.Context, batchID int64, status domain.CommitmentStatus) ([]*domain.Commitment, error) {
	query := `
		SELECT commit_id, commit_hash, pool_id, batch_id, deposit_amount, depositor, status, created_at
		FROM commitments
		WHERE batch_id = $1 AND status = $2
		ORDER BY commit_id ASC
	`

	rows, err := s.pool.Query(ctx, query, batchID, string(status))
	if err != nil {
		return nil, fmt.Errorf("get commitments by batch and status: %w", err)
	}
	defer rows.Close()

	return scanCommitments(rows)
}

// UpdateStatus sets the status of a commitment.
func (s *CommitmentStore) UpdateStatus(ctx context.Context, commitID string, status domain.CommitmentStatus) error {
	query := `
		UPDATE commitments
		SET status = $2
		WHERE commit_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, commitID, string(status))
	if err != nil {
		return fmt.Errorf("update commitment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanCommitments scans multiple rows into a slice of Commitment.
func scanCommitments(rows pgx.Rows) ([]*domain.Commitment, error) {
	var commitments []*domain.Commitment

	for rows.Next() {
		var c domain.Commitment
		var hash []byte
		var deposit int64
		var statusStr string

		err := rows.Scan(
			&c.CommitID,
			&hash,
			&c.PoolID,
			&c.BatchID,
			&deposit,
			&c.Depositor,
			&statusStr,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan commitment row: %w", err)
		}

		copy(c.CommitHash[:], hash)
		c.DepositAmount = uint64(deposit)
		c.Status = domain.CommitmentStatus(statusStr)
		commitments = append(commitments, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commitment rows: %w", err)
	}

	return commitments, nil
}
