// Package verification re-derives a settlement independently before it
// is applied. The clearing engine is deterministic and order
// independent, so replaying it over a permuted input must reproduce the
// same price, reserves and per-order outcomes exactly.
package verification

import (
	"context"
	"fmt"

	"sealed-batch-dex/internal/clearing"
	"sealed-batch-dex/internal/domain"
)

// Verifier checks pool settlements by conservation arithmetic and by
// an order-reversed replay of the clearing engine.
type Verifier struct {
	engine *clearing.Engine
}

// New creates a Verifier replaying through the given engine. The
// engine must carry the same oracle and params as the one that
// produced the settlements under check.
func New(engine *clearing.Engine) *Verifier {
	return &Verifier{engine: engine}
}

// Check validates one pool settlement. It returns the first violation
// found, or nil if the settlement reproduces.
func (v *Verifier) Check(ctx context.Context, pool *domain.Pool, orders []*domain.RevealedOrder, rank func(int) int, result *clearing.Result) error {
	if err := v.checkConservation(pool, result); err != nil {
		return err
	}
	return v.checkReplay(ctx, pool, orders, rank, result)
}

// checkConservation verifies the settlement's arithmetic against the
// pool it started from: inputs and outputs must balance to the unit,
// and the constant product must not decrease.
func (v *Verifier) checkConservation(pool *domain.Pool, result *clearing.Result) error {
	s := result.Settlement

	var sumIn, sumGross, sumFee, sumNet uint64
	for _, out := range result.Outcomes {
		if out.Kind != domain.OutcomeExecuted {
			continue
		}
		sumIn += out.AmountIn
		sumGross += out.GrossOut
		sumFee += out.Fee
		sumNet += out.NetOut
		if out.GrossOut != out.NetOut+out.Fee {
			return fmt.Errorf("order %s: gross %d != net %d + fee %d", out.CommitID, out.GrossOut, out.NetOut, out.Fee)
		}
	}

	if sumIn != s.TotalIn {
		return fmt.Errorf("executed inputs sum to %d, settlement says %d", sumIn, s.TotalIn)
	}
	if sumNet != s.TotalOut {
		return fmt.Errorf("net outputs sum to %d, settlement says %d", sumNet, s.TotalOut)
	}
	if sumFee != s.LPFee+s.ProtocolFee {
		return fmt.Errorf("fees sum to %d, settlement says %d lp + %d protocol", sumFee, s.LPFee, s.ProtocolFee)
	}
	if want := pool.ReserveIn + s.TotalIn; s.ReserveInAfter != want {
		return fmt.Errorf("reserve_in after is %d, want %d", s.ReserveInAfter, want)
	}
	outflow := s.TotalOut + s.ProtocolFee
	if outflow > pool.ReserveOut {
		return fmt.Errorf("outflow %d exceeds reserve_out %d", outflow, pool.ReserveOut)
	}
	if want := pool.ReserveOut - outflow; s.ReserveOutAfter != want {
		return fmt.Errorf("reserve_out after is %d, want %d", s.ReserveOutAfter, want)
	}
	if result.PoolAfter.ReserveIn != s.ReserveInAfter || result.PoolAfter.ReserveOut != s.ReserveOutAfter {
		return fmt.Errorf("pool record (%d, %d) disagrees with settlement (%d, %d)",
			result.PoolAfter.ReserveIn, result.PoolAfter.ReserveOut, s.ReserveInAfter, s.ReserveOutAfter)
	}
	return nil
}

// checkReplay re-clears the pool with the orders reversed and demands
// a bit-identical settlement.
func (v *Verifier) checkReplay(ctx context.Context, pool *domain.Pool, orders []*domain.RevealedOrder, rank func(int) int, result *clearing.Result) error {
	reversed := make([]*domain.RevealedOrder, len(orders))
	for i, r := range orders {
		reversed[len(orders)-1-i] = r
	}

	replay, err := v.engine.Clear(ctx, result.Settlement.BatchID, pool, reversed, rank, result.Settlement.ExecutedAt)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	a, b := result.Settlement, replay.Settlement
	if a.ClearingPriceNum != b.ClearingPriceNum || a.ClearingPriceDen != b.ClearingPriceDen {
		return fmt.Errorf("replay price %d/%d, original %d/%d", b.ClearingPriceNum, b.ClearingPriceDen, a.ClearingPriceNum, a.ClearingPriceDen)
	}
	if a.ReserveInAfter != b.ReserveInAfter || a.ReserveOutAfter != b.ReserveOutAfter {
		return fmt.Errorf("replay reserves (%d, %d), original (%d, %d)", b.ReserveInAfter, b.ReserveOutAfter, a.ReserveInAfter, a.ReserveOutAfter)
	}
	if len(replay.Outcomes) != len(result.Outcomes) {
		return fmt.Errorf("replay produced %d outcomes, original %d", len(replay.Outcomes), len(result.Outcomes))
	}

	byCommit := make(map[string]domain.OrderOutcome, len(replay.Outcomes))
	for _, out := range replay.Outcomes {
		byCommit[out.CommitID] = out
	}
	for _, out := range result.Outcomes {
		got, ok := byCommit[out.CommitID]
		if !ok {
			return fmt.Errorf("replay is missing order %s", out.CommitID)
		}
		if got.Kind != out.Kind || got.NetOut != out.NetOut || got.Fee != out.Fee || got.GrossOut != out.GrossOut {
			return fmt.Errorf("order %s diverged: replay %s net=%d, original %s net=%d",
				out.CommitID, got.Kind, got.NetOut, out.Kind, out.NetOut)
		}
	}
	return nil
}
