// Package commitment implements the commit half of the auction: hidden
// order pledges with deposits, accepted only during the commit window.
package commitment

import (
	"context"
	"errors"
	"fmt"

	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/identity"
	"sealed-batch-dex/internal/idhash"
	"sealed-batch-dex/internal/phase"
	"sealed-batch-dex/internal/storage"
)

// Registry errors
var (
	ErrNoActiveBatch = errors.New("no active batch")
	ErrUnknownPool   = errors.New("unknown pool")
	ErrBadDepositor  = errors.New("depositor is not a valid address")
)

// Registry accepts commitments into the current batch.
type Registry struct {
	batches     storage.BatchStore
	commitments storage.CommitmentStore
	pools       storage.PoolStore
	ledger      collab.AssetLedger
	params      domain.Params
	nowMs       func() int64
}

// RegistryOptions contains configuration for creating a Registry.
type RegistryOptions struct {
	BatchStore      storage.BatchStore
	CommitmentStore storage.CommitmentStore
	PoolStore       storage.PoolStore
	Ledger          collab.AssetLedger
	Params          domain.Params
	NowMs           func() int64
}

// NewRegistry creates a commitment registry.
func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{
		batches:     opts.BatchStore,
		commitments: opts.CommitmentStore,
		pools:       opts.PoolStore,
		ledger:      opts.Ledger,
		params:      opts.Params,
		nowMs:       opts.NowMs,
	}
}

// CommitRequest is one commit call.
type CommitRequest struct {
	Depositor  string
	PoolID     string
	CommitHash domain.CommitHash
	Deposit    uint64
}

// Commit stores a hidden order pledge in the current batch.
// Steps:
//  1. Validate depositor address
//  2. Load current batch and assert Commit phase
//  3. Load pool and check the deposit minimum
//  4. Escrow the deposit
//  5. Derive the commit ID and insert the commitment
func (r *Registry) Commit(ctx context.Context, req CommitRequest) (*domain.Commitment, error) {
	if !identity.Valid(req.Depositor) {
		return nil, fmt.Errorf("%w: %s", ErrBadDepositor, req.Depositor)
	}

	batch, err := r.batches.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoActiveBatch
		}
		return nil, fmt.Errorf("load current batch: %w", err)
	}

	now := r.nowMs()
	if err := phase.Require(batch, r.params, now, domain.PhaseCommit); err != nil {
		return nil, err
	}

	pool, err := r.pools.GetByID(ctx, req.PoolID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPool, req.PoolID)
		}
		return nil, fmt.Errorf("load pool: %w", err)
	}

	if req.Deposit < pool.MinDeposit {
		return nil, fmt.Errorf("%w: got %d, pool minimum %d", domain.ErrDepositTooLow, req.Deposit, pool.MinDeposit)
	}

	if err := r.ledger.TransferIn(ctx, req.Depositor, r.params.DepositAsset, req.Deposit); err != nil {
		return nil, fmt.Errorf("escrow deposit: %w", err)
	}

	c := &domain.Commitment{
		CommitID:      idhash.ComputeCommitID(req.Depositor, req.CommitHash, batch.BatchID, idhash.NewNonce()),
		CommitHash:    req.CommitHash,
		PoolID:        pool.PoolID,
		BatchID:       batch.BatchID,
		DepositAmount: req.Deposit,
		Depositor:     req.Depositor,
		Status:        domain.StatusCommitted,
		CreatedAt:     now,
	}

	if err := r.commitments.Insert(ctx, c); err != nil {
		// Unwind the escrow before surfacing the failure.
		if refundErr := r.ledger.TransferOut(ctx, req.Depositor, r.params.DepositAsset, req.Deposit); refundErr != nil {
			return nil, fmt.Errorf("insert commitment: %w (deposit refund also failed: %v)", err, refundErr)
		}
		return nil, fmt.Errorf("insert commitment: %w", err)
	}

	return c, nil
}
