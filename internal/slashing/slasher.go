// Package slashing forfeits deposits of commitments that expired
// without a valid reveal. Slashing is permissionless: any caller may
// trigger it once the reveal window has closed, and repeated calls
// converge to the same result.
package slashing

import (
	"context"
	"errors"
	"fmt"

	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/phase"
	"sealed-batch-dex/internal/storage"
)

// TreasuryMemoSlash tags slash proceeds in treasury deposits.
const TreasuryMemoSlash = "slash"

// ErrUnknownCommit is returned for a commit_id with no record.
var ErrUnknownCommit = errors.New("unknown commitment")

// Slasher applies non-reveal penalties.
type Slasher struct {
	batches     storage.BatchStore
	commitments storage.CommitmentStore
	ledger      collab.AssetLedger
	treasury    collab.Treasury
	params      domain.Params
	nowMs       func() int64
}

// SlasherOptions contains configuration for creating a Slasher.
type SlasherOptions struct {
	BatchStore      storage.BatchStore
	CommitmentStore storage.CommitmentStore
	Ledger          collab.AssetLedger
	Treasury        collab.Treasury
	Params          domain.Params
	NowMs           func() int64
}

// NewSlasher creates a slashing engine.
func NewSlasher(opts SlasherOptions) *Slasher {
	return &Slasher{
		batches:     opts.BatchStore,
		commitments: opts.CommitmentStore,
		ledger:      opts.Ledger,
		treasury:    opts.Treasury,
		params:      opts.Params,
		nowMs:       opts.NowMs,
	}
}

// Result reports one slash.
type Result struct {
	CommitID  string
	Forfeited uint64 // sent to the treasury
	Refunded  uint64 // returned to the depositor
	// AlreadySlashed marks the idempotent no-op case.
	AlreadySlashed bool
}

// SlashUnrevealed slashes a single never-revealed commitment.
// Calling it on an already-slashed commitment is a no-op, not an
// error, to tolerate concurrent permissionless callers.
func (s *Slasher) SlashUnrevealed(ctx context.Context, commitID string) (*Result, error) {
	c, err := s.commitments.GetByID(ctx, commitID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, commitID)
		}
		return nil, fmt.Errorf("load commitment: %w", err)
	}

	switch c.Status {
	case domain.StatusSlashed:
		return &Result{CommitID: commitID, AlreadySlashed: true}, nil
	case domain.StatusRevealed, domain.StatusExecuted:
		return nil, domain.ErrAlreadyRevealed
	}

	batch, err := s.batches.GetByID(ctx, c.BatchID)
	if err != nil {
		return nil, fmt.Errorf("load batch %d: %w", c.BatchID, err)
	}

	// Slashable only once the reveal window is over. The check is
	// against the clock, not the recorded phase: liveness must not
	// depend on anyone having advanced the phase first.
	now := s.nowMs()
	if p := phase.Effective(batch, s.params, now); p != domain.PhaseSettling && p != domain.PhaseSettled {
		return nil, &domain.PhaseError{
			Want:        domain.PhaseSettling,
			Got:         p,
			RemainingMs: phase.TimeUntilChange(batch.StartTime, s.params.CommitDurationMs, s.params.RevealDurationMs, now),
		}
	}

	forfeited := feeOn(c.DepositAmount, s.params.SlashBps)
	refunded := c.DepositAmount - forfeited

	// Status first: under the single-writer model this is the atomic
	// check-then-transition that makes concurrent callers converge.
	if err := s.commitments.UpdateStatus(ctx, commitID, domain.StatusSlashed); err != nil {
		return nil, fmt.Errorf("mark slashed: %w", err)
	}
	if forfeited > 0 {
		if err := s.treasury.Deposit(ctx, s.params.DepositAsset, forfeited, TreasuryMemoSlash); err != nil {
			return nil, fmt.Errorf("forward slash to treasury: %w", err)
		}
	}
	if refunded > 0 {
		if err := s.ledger.TransferOut(ctx, c.Depositor, s.params.DepositAsset, refunded); err != nil {
			return nil, fmt.Errorf("refund remainder: %w", err)
		}
	}

	return &Result{CommitID: commitID, Forfeited: forfeited, Refunded: refunded}, nil
}

// SlashAllUnrevealed slashes every never-revealed commitment of a
// batch. Returns the individual results; already-slashed entries are
// skipped silently.
func (s *Slasher) SlashAllUnrevealed(ctx context.Context, batchID int64) ([]*Result, error) {
	stale, err := s.commitments.GetByBatchAndStatus(ctx, batchID, domain.StatusCommitted)
	if err != nil {
		return nil, fmt.Errorf("list unrevealed: %w", err)
	}

	results := make([]*Result, 0, len(stale))
	for _, c := range stale {
		r, err := s.SlashUnrevealed(ctx, c.CommitID)
		if err != nil {
			return results, fmt.Errorf("slash %s: %w", c.CommitID, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// feeOn is floor(amount*bps/10000), split so the product cannot
// overflow uint64.
func feeOn(amount uint64, bps uint32) uint64 {
	hi := amount / 10_000 * uint64(bps)
	lo := amount % 10_000 * uint64(bps) / 10_000
	return hi + lo
}
