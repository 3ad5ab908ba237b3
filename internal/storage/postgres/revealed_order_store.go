package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// RevealedOrderStore implements storage.RevealedOrderStore using PostgreSQL.
type RevealedOrderStore struct {
	pool *Pool
}

// NewRevealedOrderStore creates a new RevealedOrderStore.
func NewRevealedOrderStore(pool *Pool) *RevealedOrderStore {
	return &RevealedOrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RevealedOrderStore = (*RevealedOrderStore)(nil)

// Insert adds a revealed order. Returns ErrDuplicateKey if one already
// exists for the commit_id.
func (s *RevealedOrderStore) Insert(ctx context.Context, o *domain.RevealedOrder) error {
	query := `
		INSERT INTO revealed_orders (
			commit_id, batch_id, pool_id, reveal_index,
			trader, asset_in, asset_out, amount_in, min_amount_out,
			secret, priority_bid, source_venue, reclaim, revealed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		o.CommitID,
		o.BatchID,
		o.PoolID,
		o.RevealIndex,
		o.Order.Trader,
		o.Order.AssetIn,
		o.Order.AssetOut,
		int64(o.Order.AmountIn),
		int64(o.Order.MinAmountOut),
		o.Secret[:],
		int64(o.PriorityBid),
		o.SourceVenue,
		o.Reclaim,
		o.RevealedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert revealed order: %w", err)
	}
	return nil
}

// GetByCommitID retrieves the revealed order of a commitment.
func (s *RevealedOrderStore) GetByCommitID(ctx context.Context, commitID string) (*domain.RevealedOrder, error) {
	query := `
		SELECT commit_id, batch_id, pool_id, reveal_index,
			trader, asset_in, asset_out, amount_in, min_amount_out,
			secret, priority_bid, source_venue, reclaim, revealed_at
		FROM revealed_orders
		WHERE commit_id = $1
	`

	row := s.pool.QueryRow(ctx, query, commitID)
	o, err := scanRevealedOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get revealed order by commit id: %w", err)
	}
	return o, nil
}

// GetByBatch retrieves all revealed orders of a batch, ordered by
// reveal_index ASC.
func (s *RevealedOrderStore) GetByBatch(ctx context.Context, batchID int64) ([]*domain.RevealedOrder, error) {
	query := `
		SELECT commit_id, batch_id, pool_id, reveal_index,
			trader, asset_in, asset_out, amount_in, min_amount_out,
			secret, priority_bid, source_venue, reclaim, revealed_at
		FROM revealed_orders
		WHERE batch_id = $1
		ORDER BY reveal_index ASC
	`

	rows, err := s.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("get revealed orders by batch: %w", err)
	}
	defer rows.Close()

	var orders []*domain.RevealedOrder
	for rows.Next() {
		o, err := scanRevealedOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revealed order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revealed order rows: %w", err)
	}
	return orders, nil
}

// scanRevealedOrder scans a single row into a RevealedOrder.
func scanRevealedOrder(row pgx.Row) (*domain.RevealedOrder, error) {
	var o domain.RevealedOrder
	var amountIn, minOut, bid int64
	var secret []byte

	err := row.Scan(
		&o.CommitID,
		&o.BatchID,
		&o.PoolID,
		&o.RevealIndex,
		&o.Order.Trader,
		&o.Order.AssetIn,
		&o.Order.AssetOut,
		&amountIn,
		&minOut,
		&secret,
		&bid,
		&o.SourceVenue,
		&o.Reclaim,
		&o.RevealedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Order.AmountIn = uint64(amountIn)
	o.Order.MinAmountOut = uint64(minOut)
	copy(o.Secret[:], secret)
	o.PriorityBid = uint64(bid)
	return &o, nil
}
