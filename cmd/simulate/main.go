// Package main runs an in-memory multi-batch auction simulation:
// random traders commit, reveal (or walk away), and batches settle at
// a uniform clearing price. Useful for eyeballing engine behavior and
// parameter choices without a database or live counterparties.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/mr-tron/base58"

	"sealed-batch-dex/internal/clearing"
	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/commitment"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/log"
	"sealed-batch-dex/internal/orchestrator"
	"sealed-batch-dex/internal/reveal"
	"sealed-batch-dex/internal/slashing"
	"sealed-batch-dex/internal/storage/memory"
	"sealed-batch-dex/internal/verification"
)

type trader struct {
	address string
	secret  domain.Secret
}

func main() {
	batches := flag.Int("batches", 5, "Number of batches to run")
	traders := flag.Int("traders", 8, "Number of traders per batch")
	reserveIn := flag.Uint64("reserve-in", 1_000_000_000, "Pool input-asset reserve")
	reserveOut := flag.Uint64("reserve-out", 1_000_000_000, "Pool output-asset reserve")
	feeBps := flag.Uint("fee-bps", 30, "Pool swap fee in basis points")
	noShowPct := flag.Float64("no-show-pct", 0.2, "Fraction of committers that never reveal")
	seed := flag.Int64("seed", 1, "RNG seed")
	outputJSON := flag.Bool("json", false, "Output batch summaries as JSON")
	flag.Parse()

	logger := log.NewLogger("simulate", os.Stderr, log.LevelWarn)
	rng := rand.New(rand.NewSource(*seed))
	ctx := context.Background()

	params := domain.DefaultParams()
	now := int64(1_000_000)
	clock := func() int64 { return now }

	batchStore := memory.NewBatchStore()
	commitStore := memory.NewCommitmentStore()
	orderStore := memory.NewRevealedOrderStore()
	poolStore := memory.NewPoolStore()
	execStore := memory.NewExecutionOrderStore()
	settlementStore := memory.NewSettlementStore()
	ledger := collab.NewMemLedger()
	treasury := collab.NewMemTreasury()
	oracle := collab.NewFixedOracle(nil)

	pool := &domain.Pool{
		PoolID:     "USDC-SOL",
		AssetIn:    "USDC",
		AssetOut:   "SOL",
		ReserveIn:  *reserveIn,
		ReserveOut: *reserveOut,
		FeeBps:     uint32(*feeBps),
		MinDeposit: 1_000_000,
	}
	if err := poolStore.Insert(ctx, pool); err != nil {
		fatal("insert pool: %v", err)
	}

	// The pool's output reserve is custodied by the venue; mirror it in
	// the escrow ledger so settlement payouts clear.
	lp := genAddress(rng)
	ledger.Fund(lp, pool.AssetOut, pool.ReserveOut)
	if err := ledger.TransferIn(ctx, lp, pool.AssetOut, pool.ReserveOut); err != nil {
		fatal("fund pool escrow: %v", err)
	}

	engine := clearing.NewEngine(oracle, params)
	slasher := slashing.NewSlasher(slashing.SlasherOptions{
		BatchStore:      batchStore,
		CommitmentStore: commitStore,
		Ledger:          ledger,
		Treasury:        treasury,
		Params:          params,
		NowMs:           clock,
	})
	orch := orchestrator.New(orchestrator.Options{
		BatchStore:          batchStore,
		CommitmentStore:     commitStore,
		OrderStore:          orderStore,
		PoolStore:           poolStore,
		ExecutionOrderStore: execStore,
		SettlementStore:     settlementStore,
		ClearingEngine:      engine,
		Slasher:             slasher,
		Checker:             verification.New(engine),
		Ledger:              ledger,
		Treasury:            treasury,
		Params:              params,
		NowMs:               clock,
		Logger:              logger,
	})
	registry := commitment.NewRegistry(commitment.RegistryOptions{
		BatchStore:      batchStore,
		CommitmentStore: commitStore,
		PoolStore:       poolStore,
		Ledger:          ledger,
		Params:          params,
		NowMs:           clock,
	})
	validator := reveal.NewValidator(reveal.ValidatorOptions{
		BatchStore:      batchStore,
		CommitmentStore: commitStore,
		OrderStore:      orderStore,
		Ledger:          ledger,
		Authorizer:      collab.NewStoreAuthorizer(commitStore),
		Params:          params,
		NowMs:           clock,
	})

	if _, err := orch.Start(ctx); err != nil {
		fatal("open genesis batch: %v", err)
	}

	for b := 0; b < *batches; b++ {
		batch, err := batchStore.GetLatest(ctx)
		if err != nil {
			fatal("load batch: %v", err)
		}

		// Commit window: every trader funds itself and commits a random
		// order sized 0.1%-1% of the input reserve.
		type planned struct {
			trader   trader
			commitID string
			order    domain.Order
			bid      uint64
			noShow   bool
		}
		var plans []planned
		for i := 0; i < *traders; i++ {
			tr := trader{address: genAddress(rng)}
			rng.Read(tr.secret[:])

			curPool, err := poolStore.GetByID(ctx, pool.PoolID)
			if err != nil {
				fatal("load pool: %v", err)
			}
			amountIn := curPool.ReserveIn/1000 + uint64(rng.Int63n(int64(curPool.ReserveIn/100)))
			order := domain.Order{
				Trader:       tr.address,
				AssetIn:      pool.AssetIn,
				AssetOut:     pool.AssetOut,
				AmountIn:     amountIn,
				// Accept up to 5% slippage against the pre-batch spot rate.
				MinAmountOut: uint64(float64(amountIn) * float64(curPool.ReserveOut) / float64(curPool.ReserveIn) * 0.95),
			}
			bid := uint64(rng.Int63n(int64(pool.MinDeposit / 10)))

			ledger.Fund(tr.address, pool.AssetIn, order.AmountIn)
			ledger.Fund(tr.address, params.DepositAsset, pool.MinDeposit+bid)

			hash := reveal.HashCommitment(order, tr.secret)
			c, err := registry.Commit(ctx, commitment.CommitRequest{
				Depositor:  tr.address,
				PoolID:     pool.PoolID,
				CommitHash: hash,
				Deposit:    pool.MinDeposit,
			})
			if err != nil {
				fatal("commit: %v", err)
			}
			plans = append(plans, planned{
				trader:   tr,
				commitID: c.CommitID,
				order:    order,
				bid:      bid,
				noShow:   rng.Float64() < *noShowPct,
			})
		}

		// Reveal window.
		now += params.CommitDurationMs + 1
		revealed := 0
		for _, p := range plans {
			if p.noShow {
				continue
			}
			_, err := validator.Reveal(ctx, reveal.Request{
				Kind:        reveal.KindReveal,
				CommitID:    p.commitID,
				Order:       p.order,
				Secret:      p.trader.secret,
				PriorityBid: p.bid,
			})
			if err != nil {
				fatal("reveal %s: %v", p.commitID, err)
			}
			revealed++
		}

		// Settlement.
		now += params.RevealDurationMs
		res, err := orch.SettleBatch(ctx, batch.BatchID)
		if err != nil {
			fatal("settle batch %d: %v", batch.BatchID, err)
		}

		printBatch(res, revealed, len(plans), *outputJSON)
		now += 1_000
	}

	fmt.Printf("\ntreasury: protocol_fee=%d priority_bid=%d slash=%d\n",
		treasury.ReceivedByMemo(orchestrator.TreasuryMemoProtocolFee),
		treasury.ReceivedByMemo(orchestrator.TreasuryMemoPriorityBid),
		treasury.ReceivedByMemo(slashing.TreasuryMemoSlash))
}

func printBatch(res *orchestrator.SettleResult, revealed, committed int, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"batch":       res.Batch.BatchID,
			"settlements": res.Settlements,
			"outcomes":    res.Outcomes,
			"slashed":     len(res.Slashed),
		})
		return
	}

	executed, refunded, skipped := 0, 0, 0
	for _, o := range res.Outcomes {
		switch o.Kind {
		case domain.OutcomeExecuted:
			executed++
		case domain.OutcomeRefunded:
			refunded++
		case domain.OutcomeSkipped:
			skipped++
		}
	}
	fmt.Printf("batch %d: committed=%d revealed=%d executed=%d refunded=%d skipped=%d slashed=%d\n",
		res.Batch.BatchID, committed, revealed, executed, refunded, skipped, len(res.Slashed))
	for _, s := range res.Settlements {
		fmt.Printf("  %s: price=%.6f in=%d out=%d lp_fee=%d protocol_fee=%d included=%d excluded=%d\n",
			s.PoolID, s.Price, s.TotalIn, s.TotalOut, s.LPFee, s.ProtocolFee, s.Included, s.Excluded)
	}
}

func genAddress(rng *rand.Rand) string {
	seed := make([]byte, ed25519.SeedSize)
	rng.Read(seed)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return base58.Encode(pub)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
