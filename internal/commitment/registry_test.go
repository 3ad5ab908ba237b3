package commitment

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"

	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage/memory"
)

const unit = 1_000_000

type fixture struct {
	now      *int64
	registry *Registry
	ledger   *collab.MemLedger
	batches  *memory.BatchStore
	params   domain.Params
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	now := int64(1_000_000)
	params := domain.DefaultParams()

	batches := memory.NewBatchStore()
	pools := memory.NewPoolStore()
	ledger := collab.NewMemLedger()

	if err := batches.Insert(ctx, &domain.Batch{BatchID: 1, StartTime: now, Phase: domain.PhaseCommit}); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if err := pools.Insert(ctx, &domain.Pool{
		PoolID: "USDC-SOL", AssetIn: "USDC", AssetOut: "SOL",
		ReserveIn: 1_000 * unit, ReserveOut: 1_000 * unit,
		FeeBps: 30, MinDeposit: 1 * unit,
	}); err != nil {
		t.Fatalf("insert pool: %v", err)
	}

	return &fixture{
		now:     &now,
		ledger:  ledger,
		batches: batches,
		params:  params,
		registry: NewRegistry(RegistryOptions{
			BatchStore:      batches,
			CommitmentStore: memory.NewCommitmentStore(),
			PoolStore:       pools,
			Ledger:          ledger,
			Params:          params,
			NowMs:           func() int64 { return now },
		}),
	}
}

func genAddress(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base58.Encode(pub)
}

func TestCommit(t *testing.T) {
	f := newFixture(t)
	depositor := genAddress(t)
	f.ledger.Fund(depositor, "USDC", 5*unit)

	c, err := f.registry.Commit(context.Background(), CommitRequest{
		Depositor:  depositor,
		PoolID:     "USDC-SOL",
		CommitHash: domain.CommitHash{0x01},
		Deposit:    2 * unit,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if c.Status != domain.StatusCommitted {
		t.Errorf("status = %s, want committed", c.Status)
	}
	if c.BatchID != 1 {
		t.Errorf("batch = %d, want 1", c.BatchID)
	}
	if c.CommitID == "" {
		t.Error("empty commit ID")
	}
	if got := f.ledger.Balance(depositor, "USDC"); got != 3*unit {
		t.Errorf("depositor balance = %d, want %d", got, 3*unit)
	}
	if got := f.ledger.Escrow("USDC"); got != 2*unit {
		t.Errorf("escrow = %d, want %d", got, 2*unit)
	}
}

func TestCommit_DistinctIDsForIdenticalRequests(t *testing.T) {
	f := newFixture(t)
	depositor := genAddress(t)
	f.ledger.Fund(depositor, "USDC", 10*unit)

	req := CommitRequest{
		Depositor:  depositor,
		PoolID:     "USDC-SOL",
		CommitHash: domain.CommitHash{0xAB},
		Deposit:    1 * unit,
	}
	a, err := f.registry.Commit(context.Background(), req)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	b, err := f.registry.Commit(context.Background(), req)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if a.CommitID == b.CommitID {
		t.Errorf("identical requests collided on %s", a.CommitID)
	}
}

func TestCommit_Rejections(t *testing.T) {
	f := newFixture(t)
	depositor := genAddress(t)
	f.ledger.Fund(depositor, "USDC", 10*unit)

	tests := []struct {
		name string
		req  CommitRequest
		want error
	}{
		{
			"bad depositor",
			CommitRequest{Depositor: "not-an-address", PoolID: "USDC-SOL", Deposit: 1 * unit},
			ErrBadDepositor,
		},
		{
			"unknown pool",
			CommitRequest{Depositor: depositor, PoolID: "USDC-BONK", Deposit: 1 * unit},
			ErrUnknownPool,
		},
		{
			"deposit below pool minimum",
			CommitRequest{Depositor: depositor, PoolID: "USDC-SOL", Deposit: unit / 2},
			domain.ErrDepositTooLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.registry.Commit(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Commit = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCommit_UnfundedDepositorKeepsNoEscrow(t *testing.T) {
	f := newFixture(t)
	depositor := genAddress(t) // never funded

	_, err := f.registry.Commit(context.Background(), CommitRequest{
		Depositor: depositor, PoolID: "USDC-SOL", Deposit: 1 * unit,
	})
	if !errors.Is(err, collab.ErrInsufficientFunds) {
		t.Fatalf("Commit = %v, want ErrInsufficientFunds", err)
	}
	if got := f.ledger.Escrow("USDC"); got != 0 {
		t.Errorf("escrow = %d after failed commit, want 0", got)
	}
}

func TestCommit_OutsideCommitWindow(t *testing.T) {
	f := newFixture(t)
	depositor := genAddress(t)
	f.ledger.Fund(depositor, "USDC", 10*unit)

	*f.now += f.params.CommitDurationMs + 1

	_, err := f.registry.Commit(context.Background(), CommitRequest{
		Depositor: depositor, PoolID: "USDC-SOL", Deposit: 1 * unit,
	})
	if !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("Commit in reveal phase = %v, want ErrWrongPhase", err)
	}

	var perr *domain.PhaseError
	if !errors.As(err, &perr) {
		t.Fatalf("error is not a PhaseError: %v", err)
	}
	if perr.Got != domain.PhaseReveal {
		t.Errorf("PhaseError.Got = %s, want reveal", perr.Got)
	}
}
