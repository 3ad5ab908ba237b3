package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Insert adds a new pool. Returns ErrDuplicateKey if pool_id exists.
func (s *PoolStore) Insert(ctx context.Context, p *domain.Pool) error {
	query := `
		INSERT INTO pools (
			pool_id, asset_in, asset_out, reserve_in, reserve_out, fee_bps, min_deposit, last_settled_batch
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PoolID,
		p.AssetIn,
		p.AssetOut,
		int64(p.ReserveIn),
		int64(p.ReserveOut),
		p.FeeBps,
		int64(p.MinDeposit),
		p.LastSettledBatch,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// GetByID retrieves a pool by its ID. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByID(ctx context.Context, poolID string) (*domain.Pool, error) {
	query := `
		SELECT pool_id, asset_in, asset_out, reserve_in, reserve_out, fee_bps, min_deposit, last_settled_batch
		FROM pools
		WHERE pool_id = $1
	`

	row := s.pool.QueryRow(ctx, query, poolID)
	p, err := scanPool(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by id: %w", err)
	}
	return p, nil
}

// List retrieves all pools, ordered by pool_id ASC.
func (s *PoolStore) List(ctx context.Context) ([]*domain.Pool, error) {
	query := `
		SELECT pool_id, asset_in, asset_out, reserve_in, reserve_out, fee_bps, min_deposit, last_settled_batch
		FROM pools
		ORDER BY pool_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var pools []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool rows: %w", err)
	}
	return pools, nil
}

// Update persists mutated reserves of an existing pool.
func (s *PoolStore) Update(ctx context.Context, p *domain.Pool) error {
	query := `
		UPDATE pools
		SET reserve_in = $2, reserve_out = $3, last_settled_batch = $4
		WHERE pool_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PoolID,
		int64(p.ReserveIn),
		int64(p.ReserveOut),
		p.LastSettledBatch,
	)
	if err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanPool scans a single row into a Pool.
func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	var reserveIn, reserveOut, minDeposit int64

	err := row.Scan(
		&p.PoolID,
		&p.AssetIn,
		&p.AssetOut,
		&reserveIn,
		&reserveOut,
		&p.FeeBps,
		&minDeposit,
		&p.LastSettledBatch,
	)
	if err != nil {
		return nil, err
	}

	p.ReserveIn = uint64(reserveIn)
	p.ReserveOut = uint64(reserveOut)
	p.MinDeposit = uint64(minDeposit)
	return &p, nil
}
