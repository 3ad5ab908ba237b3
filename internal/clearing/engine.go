// Package clearing computes the uniform clearing price of a batch
// against a constant-product pool and the per-order settlement amounts.
// The engine is pure: it never moves assets or writes storage.
package clearing

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/holiman/uint256"

	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/domain"
)

// Engine computes pool settlements.
type Engine struct {
	oracle collab.Oracle
	params domain.Params
}

// NewEngine creates a clearing engine. A nil oracle disables the
// deviation circuit breaker.
func NewEngine(oracle collab.Oracle, params domain.Params) *Engine {
	return &Engine{oracle: oracle, params: params}
}

// Result is the outcome of clearing one pool for one batch.
type Result struct {
	Settlement *domain.Settlement
	PoolAfter  domain.Pool

	// Outcomes holds executed orders first, in settlement sequence,
	// followed by refunded orders in reveal-index order.
	Outcomes []domain.OrderOutcome

	// Sequence is the reveal indices of executed orders in the order
	// they logically consume liquidity.
	Sequence []int
}

// Clear computes the uniform price for one pool's revealed orders.
// rank maps a reveal index to its position in the batch's shuffled
// permutation; it orders zero-bid orders in the settlement sequence.
//
// Every order clears at the same price: each executed order receives
// a pro-rata share of the aggregate constant-product output, with the
// output fee deducted before crediting. Orders whose limit cannot be
// met at that price are excluded and refunded, which only improves the
// price for the rest, so exclusion runs to a fixpoint.
func (e *Engine) Clear(ctx context.Context, batchID int64, pool *domain.Pool, orders []*domain.RevealedOrder, rank func(revealIndex int) int, nowMs int64) (*Result, error) {
	var included []*domain.RevealedOrder
	var refunded []domain.OrderOutcome

	refund := func(o *domain.RevealedOrder, reason string) {
		refunded = append(refunded, domain.OrderOutcome{
			CommitID:    o.CommitID,
			RevealIndex: o.RevealIndex,
			Kind:        domain.OutcomeRefunded,
			Reason:      reason,
			AmountIn:    o.Order.AmountIn,
		})
	}

	for _, o := range orders {
		switch {
		case o.Reclaim:
			refund(o, "reclaim")
		case !pool.Matches(o.Order):
			refund(o, "asset pair does not match pool")
		default:
			included = append(included, o)
		}
	}

	// Iteratively exclude limit violations. Removing input improves the
	// per-unit price for the remaining orders, so no included order ever
	// flips out and the loop shrinks monotonically. Exclusion is final:
	// an order dropped in an early round is not reconsidered even if the
	// final price would have satisfied its limit.
	var totalIn, grossTotal uint64
	amounts := make(map[string]domain.OrderOutcome)
	for {
		totalIn = 0
		tIn := new(uint256.Int)
		for _, o := range included {
			tIn.Add(tIn, uint256.NewInt(o.Order.AmountIn))
		}
		if !tIn.IsUint64() {
			return nil, fmt.Errorf("%w: total input overflows", domain.ErrInvariantViolation)
		}
		totalIn = tIn.Uint64()
		grossTotal = grossOutput(pool.ReserveIn, pool.ReserveOut, tIn)

		var keep []*domain.RevealedOrder
		for _, o := range included {
			gross := proRata(grossTotal, uint256.NewInt(o.Order.AmountIn), tIn)
			fee := feeOn(gross, pool.FeeBps)
			net := gross - fee
			if net < o.Order.MinAmountOut {
				refund(o, domain.ErrLimitNotSatisfied.Error())
				continue
			}
			amounts[o.CommitID] = domain.OrderOutcome{
				CommitID:    o.CommitID,
				RevealIndex: o.RevealIndex,
				Kind:        domain.OutcomeExecuted,
				AmountIn:    o.Order.AmountIn,
				GrossOut:    gross,
				Fee:         fee,
				NetOut:      net,
			}
			keep = append(keep, o)
		}
		if len(keep) == len(included) {
			break
		}
		included = keep
		if len(included) == 0 {
			break
		}
	}

	if len(included) == 0 {
		// Nothing trades; reserves are untouched.
		sort.Slice(refunded, func(i, j int) bool { return refunded[i].RevealIndex < refunded[j].RevealIndex })
		return &Result{
			Settlement: &domain.Settlement{
				BatchID:          batchID,
				PoolID:           pool.PoolID,
				ClearingPriceDen: 1,
				Excluded:         len(refunded),
				ReserveInAfter:   pool.ReserveIn,
				ReserveOutAfter:  pool.ReserveOut,
				ExecutedAt:       nowMs,
			},
			PoolAfter: *pool,
			Outcomes:  refunded,
		}, nil
	}

	price := float64(grossTotal) / float64(totalIn)
	if err := e.checkDeviation(ctx, pool.PoolID, price); err != nil {
		return nil, err
	}

	var sumGross, sumNet, sumFee uint64
	for _, o := range included {
		a := amounts[o.CommitID]
		sumGross += a.GrossOut
		sumNet += a.NetOut
		sumFee += a.Fee
	}
	protocolFee := feeOn(sumFee, e.params.ProtocolFeeShareBps)
	lpFee := sumFee - protocolFee
	dust := grossTotal - sumGross

	if pool.ReserveIn > math.MaxUint64-totalIn {
		return nil, fmt.Errorf("%w: reserve overflow", domain.ErrInvariantViolation)
	}
	outflow := sumNet + protocolFee
	if outflow >= pool.ReserveOut {
		return nil, fmt.Errorf("%w: settlement drains reserves", domain.ErrInvariantViolation)
	}

	after := *pool
	after.ReserveIn = pool.ReserveIn + totalIn
	after.ReserveOut = pool.ReserveOut - outflow
	after.LastSettledBatch = batchID

	if !productNonDecreasing(pool.ReserveIn, pool.ReserveOut, after.ReserveIn, after.ReserveOut) {
		return nil, fmt.Errorf("%w: product decreased for pool %s in batch %d", domain.ErrInvariantViolation, pool.PoolID, batchID)
	}

	seq := sequence(included, rank)
	outcomes := make([]domain.OrderOutcome, 0, len(seq)+len(refunded))
	byIndex := make(map[int]*domain.RevealedOrder, len(included))
	for _, o := range included {
		byIndex[o.RevealIndex] = o
	}
	for _, idx := range seq {
		outcomes = append(outcomes, amounts[byIndex[idx].CommitID])
	}
	sort.Slice(refunded, func(i, j int) bool { return refunded[i].RevealIndex < refunded[j].RevealIndex })
	outcomes = append(outcomes, refunded...)

	return &Result{
		Settlement: &domain.Settlement{
			BatchID:          batchID,
			PoolID:           pool.PoolID,
			ClearingPriceNum: grossTotal,
			ClearingPriceDen: totalIn,
			Price:            price,
			TotalIn:          totalIn,
			TotalOut:         sumNet,
			LPFee:            lpFee,
			ProtocolFee:      protocolFee,
			Dust:             dust,
			Included:         len(included),
			Excluded:         len(refunded),
			ReserveInAfter:   after.ReserveIn,
			ReserveOutAfter:  after.ReserveOut,
			ExecutedAt:       nowMs,
		},
		PoolAfter: after,
		Outcomes:  outcomes,
		Sequence:  seq,
	}, nil
}

// sequence fixes the order in which executed orders logically consume
// liquidity. Priority bids never change the price; they only promote:
// positive bids settle first, higher bid earlier, equal bids broken by
// ascending reveal index (first revealed wins). Zero-bid orders follow
// in shuffled permutation order.
func sequence(included []*domain.RevealedOrder, rank func(revealIndex int) int) []int {
	ordered := append([]*domain.RevealedOrder(nil), included...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if (a.PriorityBid > 0) != (b.PriorityBid > 0) {
			return a.PriorityBid > 0
		}
		if a.PriorityBid > 0 {
			if a.PriorityBid != b.PriorityBid {
				return a.PriorityBid > b.PriorityBid
			}
			return a.RevealIndex < b.RevealIndex
		}
		return rank(a.RevealIndex) < rank(b.RevealIndex)
	})

	seq := make([]int, len(ordered))
	for i, o := range ordered {
		seq[i] = o.RevealIndex
	}
	return seq
}

func (e *Engine) checkDeviation(ctx context.Context, poolID string, price float64) error {
	if e.oracle == nil || e.params.MaxPriceDeviationBps == 0 {
		return nil
	}
	twap, err := e.oracle.TWAP(ctx, poolID)
	if err != nil {
		return fmt.Errorf("oracle twap: %w", err)
	}
	if twap <= 0 {
		return nil
	}
	dev := math.Abs(price-twap) / twap * 10_000
	if dev > float64(e.params.MaxPriceDeviationBps) {
		return fmt.Errorf("%w: price %.8f vs twap %.8f (%.0f bps)", domain.ErrPriceDeviation, price, twap, dev)
	}
	return nil
}
