package clickhouse

import (
	"context"
	"fmt"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

// SettlementStore implements storage.SettlementStore using ClickHouse.
// Settlements are append-only analytics rows written once per batch.
type SettlementStore struct {
	conn *Conn
}

// NewSettlementStore creates a new SettlementStore.
func NewSettlementStore(conn *Conn) *SettlementStore {
	return &SettlementStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SettlementStore = (*SettlementStore)(nil)

// InsertBulk adds the settlement records of one batch.
func (s *SettlementStore) InsertBulk(ctx context.Context, settlements []*domain.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO settlements (
			batch_id, pool_id,
			clearing_price_num, clearing_price_den, price,
			total_in, total_out, lp_fee, protocol_fee, dust,
			included, excluded,
			reserve_in_after, reserve_out_after,
			executed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare settlement batch: %w", err)
	}

	for _, st := range settlements {
		err := batch.Append(
			uint64(st.BatchID),
			st.PoolID,
			st.ClearingPriceNum,
			st.ClearingPriceDen,
			st.Price,
			st.TotalIn,
			st.TotalOut,
			st.LPFee,
			st.ProtocolFee,
			st.Dust,
			uint32(st.Included),
			uint32(st.Excluded),
			st.ReserveInAfter,
			st.ReserveOutAfter,
			uint64(st.ExecutedAt),
		)
		if err != nil {
			return fmt.Errorf("append settlement row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send settlement batch: %w", err)
	}
	return nil
}

// GetByBatch retrieves a batch's settlements, ordered by pool_id ASC.
func (s *SettlementStore) GetByBatch(ctx context.Context, batchID int64) ([]*domain.Settlement, error) {
	query := `
		SELECT batch_id, pool_id,
			clearing_price_num, clearing_price_den, price,
			total_in, total_out, lp_fee, protocol_fee, dust,
			included, excluded,
			reserve_in_after, reserve_out_after,
			executed_at
		FROM settlements
		WHERE batch_id = ?
		ORDER BY pool_id ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(batchID))
	if err != nil {
		return nil, fmt.Errorf("get settlements by batch: %w", err)
	}
	defer rows.Close()

	var settlements []*domain.Settlement
	for rows.Next() {
		var st domain.Settlement
		var batchID, executedAt uint64
		var included, excluded uint32

		err := rows.Scan(
			&batchID,
			&st.PoolID,
			&st.ClearingPriceNum,
			&st.ClearingPriceDen,
			&st.Price,
			&st.TotalIn,
			&st.TotalOut,
			&st.LPFee,
			&st.ProtocolFee,
			&st.Dust,
			&included,
			&excluded,
			&st.ReserveInAfter,
			&st.ReserveOutAfter,
			&executedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}

		st.BatchID = int64(batchID)
		st.Included = int(included)
		st.Excluded = int(excluded)
		st.ExecutedAt = int64(executedAt)
		settlements = append(settlements, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return settlements, nil
}
