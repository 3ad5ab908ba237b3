// Package orchestrator sequences the batch lifecycle:
// advance phase → accept commits → accept reveals → shuffle → price →
// settle → slash stragglers → open the next batch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"sealed-batch-dex/internal/clearing"
	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/log"
	"sealed-batch-dex/internal/observability"
	"sealed-batch-dex/internal/phase"
	"sealed-batch-dex/internal/shuffle"
	"sealed-batch-dex/internal/slashing"
	"sealed-batch-dex/internal/storage"
)

// Treasury memos for settlement flows.
const (
	TreasuryMemoProtocolFee = "protocol_fee"
	TreasuryMemoPriorityBid = "priority_bid"
)

// Event is a lifecycle notification for subscribers.
type Event struct {
	Type    string       `json:"type"` // phase_change | batch_settled | batch_opened
	BatchID int64        `json:"batch_id"`
	Phase   domain.Phase `json:"phase,omitempty"`
	PoolID  string       `json:"pool_id,omitempty"`
	Price   float64      `json:"price,omitempty"`
	Time    int64        `json:"time"`
}

// EventSink receives lifecycle events. Must not block.
type EventSink func(Event)

// SettlementChecker re-verifies a pool settlement before it is applied.
type SettlementChecker interface {
	Check(ctx context.Context, pool *domain.Pool, orders []*domain.RevealedOrder, rank func(int) int, result *clearing.Result) error
}

// Orchestrator drives batches through their lifecycle.
type Orchestrator struct {
	// Stores
	batches     storage.BatchStore
	commitments storage.CommitmentStore
	orders      storage.RevealedOrderStore
	pools       storage.PoolStore
	execOrders  storage.ExecutionOrderStore
	settlements storage.SettlementStore // optional

	// Engines
	clearing *clearing.Engine
	slasher  *slashing.Slasher
	checker  SettlementChecker // optional

	// Collaborators
	ledger   collab.AssetLedger
	treasury collab.Treasury

	params  domain.Params
	nowMs   func() int64
	logger  *log.Logger
	metrics *observability.Metrics // optional
	events  EventSink              // optional
}

// Options for creating an Orchestrator.
type Options struct {
	BatchStore          storage.BatchStore
	CommitmentStore     storage.CommitmentStore
	OrderStore          storage.RevealedOrderStore
	PoolStore           storage.PoolStore
	ExecutionOrderStore storage.ExecutionOrderStore
	SettlementStore     storage.SettlementStore

	ClearingEngine *clearing.Engine
	Slasher        *slashing.Slasher
	Checker        SettlementChecker

	Ledger   collab.AssetLedger
	Treasury collab.Treasury

	Params  domain.Params
	NowMs   func() int64
	Logger  *log.Logger
	Metrics *observability.Metrics
	Events  EventSink
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	now := opts.NowMs
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Orchestrator{
		batches:     opts.BatchStore,
		commitments: opts.CommitmentStore,
		orders:      opts.OrderStore,
		pools:       opts.PoolStore,
		execOrders:  opts.ExecutionOrderStore,
		settlements: opts.SettlementStore,
		clearing:    opts.ClearingEngine,
		slasher:     opts.Slasher,
		checker:     opts.Checker,
		ledger:      opts.Ledger,
		treasury:    opts.Treasury,
		params:      opts.Params,
		nowMs:       now,
		logger:      logger,
		metrics:     opts.Metrics,
		events:      opts.Events,
	}
}

// Start opens the genesis batch if none exists and returns the live
// batch. Safe to call repeatedly.
func (o *Orchestrator) Start(ctx context.Context) (*domain.Batch, error) {
	batch, err := o.batches.GetLatest(ctx)
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load latest batch: %w", err)
	}
	return o.openBatch(ctx, 1)
}

// AdvancePhase recomputes the live batch's phase from the clock and
// persists it when it moved. Permissionless: anyone may call it, and
// an unadvanced phase is still treated as expired by every operation's
// own phase check, so liveness never depends on this being called.
func (o *Orchestrator) AdvancePhase(ctx context.Context) (*domain.Batch, error) {
	batch, err := o.batches.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest batch: %w", err)
	}

	now := o.nowMs()
	current := phase.Effective(batch, o.params, now)
	if current == batch.Phase {
		return batch, nil
	}

	batch.Phase = current
	if err := o.batches.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("persist phase: %w", err)
	}

	o.logger.Info("phase advanced", "batch", batch.BatchID, "phase", current)
	o.emit(Event{Type: "phase_change", BatchID: batch.BatchID, Phase: current, Time: now})
	return batch, nil
}

// SettleResult reports one settled batch.
type SettleResult struct {
	Batch       *domain.Batch
	Settlements []*domain.Settlement
	Outcomes    []domain.OrderOutcome
	Slashed     []*slashing.Result
	NextBatch   *domain.Batch
}

// SettleBatch settles the batch all-or-nothing: either every clearing
// order is applied and each pool updated exactly once, or nothing is
// and the call may be retried.
// Steps:
//  1. Load the batch, assert Settling, guard idempotency
//  2. Load revealed orders and the execution order (computed once)
//  3. Collect cross-venue priority bids; forwarding failures skip the
//     order, never the batch
//  4. Clear every pool (pure); verify; abort on any failure
//  5. Apply: move assets, advance statuses, update pools, record
//     settlements
//  6. Mark settled, slash stragglers, open the next batch
func (o *Orchestrator) SettleBatch(ctx context.Context, batchID int64) (*SettleResult, error) {
	batch, err := o.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load batch %d: %w", batchID, err)
	}
	if batch.IsSettled {
		return nil, domain.ErrAlreadySettled
	}

	now := o.nowMs()
	if err := phase.Require(batch, o.params, now, domain.PhaseSettling); err != nil {
		return nil, err
	}
	started := time.Now()

	revealed, err := o.orders.GetByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load revealed orders: %w", err)
	}

	exec, err := o.executionOrder(ctx, batch, revealed, now)
	if err != nil {
		return nil, err
	}
	rank := permRank(exec.Permutation)

	candidates, skipped, forwarded, err := o.forwardCrossVenueBids(ctx, revealed)
	if err != nil {
		return nil, err
	}

	results, err := o.clearAll(ctx, batchID, candidates, rank, now)
	if err != nil {
		// Discard the attempt: unwind forwarded bids so a retry starts clean.
		o.unwindForwarded(ctx, forwarded)
		if o.metrics != nil {
			o.metrics.SettlementFailures.WithLabelValues(failureReason(err)).Inc()
		}
		return nil, err
	}

	outcomes, err := o.apply(ctx, batch, results, skipped)
	if err != nil {
		return nil, err
	}

	batch.IsSettled = true
	batch.Phase = domain.PhaseSettled
	if err := o.batches.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("mark batch settled: %w", err)
	}

	slashed, err := o.slasher.SlashAllUnrevealed(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("slash stragglers: %w", err)
	}

	next, err := o.openBatch(ctx, batch.BatchID+1)
	if err != nil {
		return nil, err
	}

	settlements := make([]*domain.Settlement, 0, len(results))
	for _, r := range results {
		settlements = append(settlements, r.Settlement)
		o.emit(Event{Type: "batch_settled", BatchID: batchID, PoolID: r.Settlement.PoolID, Price: r.Settlement.Price, Time: now})
		o.logger.Info("pool settled",
			"batch", batchID, "pool", r.Settlement.PoolID,
			"price", r.Settlement.Price,
			"included", r.Settlement.Included, "excluded", r.Settlement.Excluded)
	}
	o.observeSettlement(batch, settlements, slashed, started)

	return &SettleResult{
		Batch:       batch,
		Settlements: settlements,
		Outcomes:    outcomes,
		Slashed:     slashed,
		NextBatch:   next,
	}, nil
}

// executionOrder loads the batch's stored permutation or computes and
// stores it exactly once.
func (o *Orchestrator) executionOrder(ctx context.Context, batch *domain.Batch, revealed []*domain.RevealedOrder, now int64) (*domain.ExecutionOrder, error) {
	exec, err := o.execOrders.GetByBatch(ctx, batch.BatchID)
	if err == nil {
		return exec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load execution order: %w", err)
	}

	exec = shuffle.Compute(batch.BatchID, revealed, now)
	if err := o.execOrders.Insert(ctx, exec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("store execution order: %w", err)
	}
	return exec, nil
}

// forwardCrossVenueBids escrows the priority bids of cross-venue
// reveals. A failed forwarding demotes its order to skipped before
// pricing; the rest of the batch settles normally.
func (o *Orchestrator) forwardCrossVenueBids(ctx context.Context, revealed []*domain.RevealedOrder) (candidates []*domain.RevealedOrder, skipped []*domain.RevealedOrder, forwarded []*domain.RevealedOrder, err error) {
	for _, r := range revealed {
		if r.SourceVenue == "" || r.PriorityBid == 0 || r.Reclaim {
			candidates = append(candidates, r)
			continue
		}
		if err := o.ledger.TransferIn(ctx, r.Order.Trader, o.params.DepositAsset, r.PriorityBid); err != nil {
			o.logger.Warn("cross-venue bid forwarding failed, skipping order",
				"commit", r.CommitID, "venue", r.SourceVenue, "err", err)
			skipped = append(skipped, r)
			continue
		}
		forwarded = append(forwarded, r)
		candidates = append(candidates, r)
	}
	return candidates, skipped, forwarded, nil
}

func (o *Orchestrator) unwindForwarded(ctx context.Context, forwarded []*domain.RevealedOrder) {
	for _, r := range forwarded {
		if err := o.ledger.TransferOut(ctx, r.Order.Trader, o.params.DepositAsset, r.PriorityBid); err != nil {
			o.logger.Error("unwind of forwarded bid failed", "commit", r.CommitID, "err", err)
		}
	}
}

// clearAll prices every pool that has candidate orders. Pools are
// processed in ascending pool_id order so the settlement is
// reproducible.
func (o *Orchestrator) clearAll(ctx context.Context, batchID int64, candidates []*domain.RevealedOrder, rank func(int) int, now int64) ([]*clearing.Result, error) {
	byPool := make(map[string][]*domain.RevealedOrder)
	for _, r := range candidates {
		byPool[r.PoolID] = append(byPool[r.PoolID], r)
	}
	poolIDs := make([]string, 0, len(byPool))
	for id := range byPool {
		poolIDs = append(poolIDs, id)
	}
	sort.Strings(poolIDs)

	results := make([]*clearing.Result, 0, len(poolIDs))
	for _, poolID := range poolIDs {
		pool, err := o.pools.GetByID(ctx, poolID)
		if err != nil {
			return nil, fmt.Errorf("load pool %s: %w", poolID, err)
		}

		res, err := o.clearing.Clear(ctx, batchID, pool, byPool[poolID], rank, now)
		if err != nil {
			return nil, fmt.Errorf("clear pool %s: %w", poolID, err)
		}
		if o.checker != nil {
			if err := o.checker.Check(ctx, pool, byPool[poolID], rank, res); err != nil {
				return nil, fmt.Errorf("%w: verification of pool %s: %v", domain.ErrInvariantViolation, poolID, err)
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// apply moves assets and advances statuses for the priced batch.
// Transfers here pay out of engine escrow filled at reveal time, so a
// correct custody collaborator cannot refuse them.
func (o *Orchestrator) apply(ctx context.Context, batch *domain.Batch, results []*clearing.Result, skipped []*domain.RevealedOrder) ([]domain.OrderOutcome, error) {
	var outcomes []domain.OrderOutcome

	byCommit := make(map[string]*domain.RevealedOrder)
	for _, r := range results {
		for i := range r.Outcomes {
			out := r.Outcomes[i]
			ro, err := o.orders.GetByCommitID(ctx, out.CommitID)
			if err != nil {
				return nil, fmt.Errorf("load revealed order %s: %w", out.CommitID, err)
			}
			byCommit[out.CommitID] = ro
		}
	}

	for _, r := range results {
		pool := r.PoolAfter
		if err := o.pools.Update(ctx, &pool); err != nil {
			return nil, fmt.Errorf("update pool %s: %w", pool.PoolID, err)
		}

		if r.Settlement.ProtocolFee > 0 {
			if err := o.treasury.Deposit(ctx, pool.AssetOut, r.Settlement.ProtocolFee, TreasuryMemoProtocolFee); err != nil {
				return nil, fmt.Errorf("forward protocol fee: %w", err)
			}
		}

		for _, out := range r.Outcomes {
			ro := byCommit[out.CommitID]
			c, err := o.commitments.GetByID(ctx, out.CommitID)
			if err != nil {
				return nil, fmt.Errorf("load commitment %s: %w", out.CommitID, err)
			}

			switch out.Kind {
			case domain.OutcomeExecuted:
				if err := o.ledger.TransferOut(ctx, ro.Order.Trader, ro.Order.AssetOut, out.NetOut); err != nil {
					return nil, fmt.Errorf("credit output for %s: %w", out.CommitID, err)
				}
				if ro.PriorityBid > 0 {
					if err := o.treasury.Deposit(ctx, o.params.DepositAsset, ro.PriorityBid, TreasuryMemoPriorityBid); err != nil {
						return nil, fmt.Errorf("forward priority bid: %w", err)
					}
				}
				if err := o.commitments.UpdateStatus(ctx, out.CommitID, domain.StatusExecuted); err != nil {
					return nil, fmt.Errorf("mark executed: %w", err)
				}
			case domain.OutcomeRefunded:
				if err := o.refund(ctx, ro, true); err != nil {
					return nil, err
				}
			}

			if err := o.ledger.TransferOut(ctx, c.Depositor, o.params.DepositAsset, c.DepositAmount); err != nil {
				return nil, fmt.Errorf("return deposit for %s: %w", out.CommitID, err)
			}
			outcomes = append(outcomes, out)
		}
	}

	// Skipped cross-venue orders: bid never arrived, trade input and
	// deposit go back, status stays Revealed.
	for _, ro := range skipped {
		c, err := o.commitments.GetByID(ctx, ro.CommitID)
		if err != nil {
			return nil, fmt.Errorf("load commitment %s: %w", ro.CommitID, err)
		}
		if err := o.refund(ctx, ro, false); err != nil {
			return nil, err
		}
		if err := o.ledger.TransferOut(ctx, c.Depositor, o.params.DepositAsset, c.DepositAmount); err != nil {
			return nil, fmt.Errorf("return deposit for %s: %w", ro.CommitID, err)
		}
		outcomes = append(outcomes, domain.OrderOutcome{
			CommitID:    ro.CommitID,
			RevealIndex: ro.RevealIndex,
			Kind:        domain.OutcomeSkipped,
			Reason:      "cross-venue bid forwarding failed",
			AmountIn:    ro.Order.AmountIn,
		})
		if o.metrics != nil {
			o.metrics.OrdersSkipped.Inc()
		}
	}

	return outcomes, nil
}

// refund returns a non-executed order's escrowed input and, when
// escrowed, its priority bid. Reclaims escrowed nothing.
func (o *Orchestrator) refund(ctx context.Context, ro *domain.RevealedOrder, refundBid bool) error {
	if ro.Reclaim {
		return nil
	}
	if err := o.ledger.TransferOut(ctx, ro.Order.Trader, ro.Order.AssetIn, ro.Order.AmountIn); err != nil {
		return fmt.Errorf("refund input for %s: %w", ro.CommitID, err)
	}
	if refundBid && ro.PriorityBid > 0 {
		if err := o.ledger.TransferOut(ctx, ro.Order.Trader, o.params.DepositAsset, ro.PriorityBid); err != nil {
			return fmt.Errorf("refund priority bid for %s: %w", ro.CommitID, err)
		}
	}
	return nil
}

func (o *Orchestrator) openBatch(ctx context.Context, id int64) (*domain.Batch, error) {
	now := o.nowMs()
	b := &domain.Batch{
		BatchID:   id,
		StartTime: now,
		Phase:     domain.PhaseCommit,
		CreatedAt: now,
	}
	if err := o.batches.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("open batch %d: %w", id, err)
	}
	o.logger.Info("batch opened", "batch", id)
	o.emit(Event{Type: "batch_opened", BatchID: id, Phase: domain.PhaseCommit, Time: now})
	if o.metrics != nil {
		o.metrics.CurrentBatchID.Set(float64(id))
	}
	return b, nil
}

func (o *Orchestrator) observeSettlement(batch *domain.Batch, settlements []*domain.Settlement, slashed []*slashing.Result, started time.Time) {
	if o.settlements != nil && len(settlements) > 0 {
		if err := o.settlements.InsertBulk(context.Background(), settlements); err != nil {
			// Analytics only; settlement itself already happened.
			o.logger.Warn("settlement history insert failed", "batch", batch.BatchID, "err", err)
		}
	}
	if o.metrics == nil {
		return
	}
	o.metrics.BatchesSettled.Inc()
	o.metrics.RevealedPerBatch.Observe(float64(batch.RevealedCount))
	o.metrics.SettlementDuration.Observe(time.Since(started).Seconds())
	for _, s := range settlements {
		o.metrics.ClearingPrice.WithLabelValues(s.PoolID).Set(s.Price)
		o.metrics.OrdersExecuted.Add(float64(s.Included))
		o.metrics.OrdersRefunded.Add(float64(s.Excluded))
	}
	for _, r := range slashed {
		if r.AlreadySlashed {
			continue
		}
		o.metrics.SlashesTotal.Inc()
		o.metrics.SlashedAmount.Add(float64(r.Forfeited))
	}
}

func (o *Orchestrator) emit(e Event) {
	if o.events != nil {
		o.events(e)
	}
}

func permRank(perm []int) func(int) int {
	rank := make(map[int]int, len(perm))
	for pos, idx := range perm {
		rank[idx] = pos
	}
	return func(i int) int { return rank[i] }
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, domain.ErrPriceDeviation):
		return "price_deviation"
	default:
		return "other"
	}
}
