// Package reveal validates order disclosures against their commitments
// and records them as settlement candidates.
package reveal

import (
	"context"
	"errors"
	"fmt"

	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/phase"
	"sealed-batch-dex/internal/shuffle"
	"sealed-batch-dex/internal/storage"
)

// Kind discriminates the reveal request variants.
type Kind string

// Reveal request kinds
const (
	// KindReveal is an ordinary local reveal: disclose the order and
	// enter it into settlement.
	KindReveal Kind = "reveal"

	// KindReclaim discloses the order only to reclaim the deposit. The
	// order never trades; it is refunded at settlement.
	KindReclaim Kind = "reclaim"

	// KindCrossVenue is a reveal forwarded by an external venue on
	// behalf of the original depositor.
	KindCrossVenue Kind = "cross_venue"
)

// Validator errors
var (
	ErrUnknownCommit = errors.New("unknown commitment")
	ErrBatchMismatch = errors.New("commitment does not belong to the current batch")
	ErrBadKind       = errors.New("unknown reveal kind")
)

// Request is one reveal call. The tagged Kind decides which fields
// matter: PriorityBid is ignored for reclaims, Venue and Caller only
// apply to cross-venue reveals.
type Request struct {
	Kind        Kind
	CommitID    string
	Order       domain.Order
	Secret      domain.Secret
	PriorityBid uint64
	Venue       string // originating venue, cross-venue only
	Caller      string // forwarding identity, cross-venue only
}

// Validator checks reveals and records revealed orders.
type Validator struct {
	batches     storage.BatchStore
	commitments storage.CommitmentStore
	orders      storage.RevealedOrderStore
	ledger      collab.AssetLedger
	auth        collab.Authorizer
	params      domain.Params
	nowMs       func() int64
}

// ValidatorOptions contains configuration for creating a Validator.
type ValidatorOptions struct {
	BatchStore      storage.BatchStore
	CommitmentStore storage.CommitmentStore
	OrderStore      storage.RevealedOrderStore
	Ledger          collab.AssetLedger
	Authorizer      collab.Authorizer
	Params          domain.Params
	NowMs           func() int64
}

// NewValidator creates a reveal validator.
func NewValidator(opts ValidatorOptions) *Validator {
	return &Validator{
		batches:     opts.BatchStore,
		commitments: opts.CommitmentStore,
		orders:      opts.OrderStore,
		ledger:      opts.Ledger,
		auth:        opts.Authorizer,
		params:      opts.Params,
		nowMs:       opts.NowMs,
	}
}

// Reveal validates a disclosure against its commitment and records the
// opened order.
// Steps:
//  1. Validate the request shape
//  2. Load current batch and assert Reveal phase
//  3. Load the commitment; it must belong to this batch and be Committed
//  4. Authorize cross-venue forwarding
//  5. Recompute the hash and require equality with the commitment
//  6. Escrow the trade input (and the local priority bid)
//  7. Record: insert revealed order, mark Revealed, fold the secret
//     into the batch seed, add the priority bid to the batch total
//
// The fold in step 7 happens for every valid reveal, including orders
// later refused by the clearing engine: the seed must depend on the
// full revealed set, never on settlement outcomes.
func (v *Validator) Reveal(ctx context.Context, req Request) (*domain.RevealedOrder, error) {
	switch req.Kind {
	case KindReveal, KindReclaim, KindCrossVenue:
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadKind, req.Kind)
	}
	if err := req.Order.Validate(); err != nil {
		return nil, err
	}

	batch, err := v.batches.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current batch: %w", err)
	}

	now := v.nowMs()
	if err := phase.Require(batch, v.params, now, domain.PhaseReveal); err != nil {
		return nil, err
	}

	c, err := v.commitments.GetByID(ctx, req.CommitID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, req.CommitID)
		}
		return nil, fmt.Errorf("load commitment: %w", err)
	}
	if c.BatchID != batch.BatchID {
		return nil, fmt.Errorf("%w: committed to batch %d, current is %d", ErrBatchMismatch, c.BatchID, batch.BatchID)
	}

	switch c.Status {
	case domain.StatusCommitted:
	case domain.StatusSlashed:
		return nil, domain.ErrAlreadySlashed
	default:
		return nil, domain.ErrAlreadyRevealed
	}

	if req.Kind == KindCrossVenue {
		ok, err := v.auth.IsDepositor(ctx, req.CommitID, req.Order.Trader)
		if err != nil {
			return nil, fmt.Errorf("authorize cross-venue reveal: %w", err)
		}
		if !ok {
			return nil, domain.ErrUnauthorized
		}
	}

	if HashCommitment(req.Order, req.Secret) != c.CommitHash {
		return nil, domain.ErrHashMismatch
	}

	bid := req.PriorityBid
	if req.Kind == KindReclaim {
		bid = 0
	}

	// Escrow the trade input so settlement can never fail on an unfunded
	// order. Reclaims never trade and escrow nothing.
	if req.Kind != KindReclaim {
		if err := v.ledger.TransferIn(ctx, req.Order.Trader, req.Order.AssetIn, req.Order.AmountIn); err != nil {
			return nil, fmt.Errorf("escrow trade input: %w", err)
		}
		// A local priority bid is collected now. Cross-venue bids are
		// forwarded by the venue at settlement time.
		if bid > 0 && req.Kind == KindReveal {
			if err := v.ledger.TransferIn(ctx, req.Order.Trader, v.params.DepositAsset, bid); err != nil {
				if refundErr := v.ledger.TransferOut(ctx, req.Order.Trader, req.Order.AssetIn, req.Order.AmountIn); refundErr != nil {
					return nil, fmt.Errorf("escrow priority bid: %w (input refund also failed: %v)", err, refundErr)
				}
				return nil, fmt.Errorf("escrow priority bid: %w", err)
			}
		}
	}

	o := &domain.RevealedOrder{
		CommitID:    c.CommitID,
		BatchID:     batch.BatchID,
		PoolID:      c.PoolID,
		RevealIndex: batch.RevealedCount,
		Order:       req.Order,
		Secret:      req.Secret,
		PriorityBid: bid,
		SourceVenue: req.Venue,
		Reclaim:     req.Kind == KindReclaim,
		RevealedAt:  now,
	}

	if err := v.orders.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("insert revealed order: %w", err)
	}
	if err := v.commitments.UpdateStatus(ctx, c.CommitID, domain.StatusRevealed); err != nil {
		return nil, fmt.Errorf("mark revealed: %w", err)
	}

	batch.SeedAccum = shuffle.Fold(batch.SeedAccum, req.Secret)
	batch.RevealedCount++
	batch.PriorityBidTotal += bid
	if err := v.batches.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("update batch accumulator: %w", err)
	}

	return o, nil
}
