package slashing

import (
	"context"
	"errors"
	"testing"

	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage/memory"
)

type fixture struct {
	slasher  *Slasher
	batches  *memory.BatchStore
	commits  *memory.CommitmentStore
	ledger   *collab.MemLedger
	treasury *collab.MemTreasury
	now      int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		batches:  memory.NewBatchStore(),
		commits:  memory.NewCommitmentStore(),
		ledger:   collab.NewMemLedger(),
		treasury: collab.NewMemTreasury(),
	}
	params := domain.DefaultParams()
	f.slasher = NewSlasher(SlasherOptions{
		BatchStore:      f.batches,
		CommitmentStore: f.commits,
		Ledger:          f.ledger,
		Treasury:        f.treasury,
		Params:          params,
		NowMs:           func() int64 { return f.now },
	})

	batch := &domain.Batch{BatchID: 1, StartTime: 0, Phase: domain.PhaseCommit}
	if err := f.batches.Insert(context.Background(), batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	return f
}

func (f *fixture) addCommitment(t *testing.T, id string, deposit uint64, status domain.CommitmentStatus) {
	t.Helper()
	err := f.commits.Insert(context.Background(), &domain.Commitment{
		CommitID:      id,
		PoolID:        "pool-1",
		BatchID:       1,
		DepositAmount: deposit,
		Depositor:     "TraderX",
		Status:        status,
	})
	if err != nil {
		t.Fatalf("insert commitment: %v", err)
	}
	// The deposit sits in engine escrow from commit time.
	f.ledger.Fund("TraderX", "USDC", deposit)
	if err := f.ledger.TransferIn(context.Background(), "TraderX", "USDC", deposit); err != nil {
		t.Fatalf("escrow: %v", err)
	}
}

func TestSlashUnrevealed(t *testing.T) {
	f := newFixture(t)
	f.addCommitment(t, "c1", 1000, domain.StatusCommitted)
	f.now = 100_000 // past commit+reveal windows

	res, err := f.slasher.SlashUnrevealed(context.Background(), "c1")
	if err != nil {
		t.Fatalf("slash: %v", err)
	}
	if res.Forfeited != 500 || res.Refunded != 500 {
		t.Errorf("forfeited/refunded = %d/%d, want 500/500", res.Forfeited, res.Refunded)
	}
	if got := f.treasury.ReceivedByMemo(TreasuryMemoSlash); got != 500 {
		t.Errorf("treasury received %d, want 500", got)
	}
	if got := f.ledger.Balance("TraderX", "USDC"); got != 500 {
		t.Errorf("depositor refund %d, want 500", got)
	}

	c, _ := f.commits.GetByID(context.Background(), "c1")
	if c.Status != domain.StatusSlashed {
		t.Errorf("status = %s", c.Status)
	}
}

func TestSlashUnrevealed_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addCommitment(t, "c1", 1000, domain.StatusCommitted)
	f.now = 100_000

	if _, err := f.slasher.SlashUnrevealed(context.Background(), "c1"); err != nil {
		t.Fatalf("first slash: %v", err)
	}
	res, err := f.slasher.SlashUnrevealed(context.Background(), "c1")
	if err != nil {
		t.Fatalf("second slash: %v", err)
	}
	if !res.AlreadySlashed {
		t.Error("second slash not reported as no-op")
	}
	// No double-charge.
	if got := f.treasury.ReceivedByMemo(TreasuryMemoSlash); got != 500 {
		t.Errorf("treasury received %d after double slash, want 500", got)
	}
}

func TestSlashUnrevealed_TooEarly(t *testing.T) {
	f := newFixture(t)
	f.addCommitment(t, "c1", 1000, domain.StatusCommitted)
	f.now = 70_000 // still inside the reveal window

	_, err := f.slasher.SlashUnrevealed(context.Background(), "c1")
	if !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("got %v, want ErrWrongPhase", err)
	}
}

func TestSlashUnrevealed_RevealedNotSlashable(t *testing.T) {
	f := newFixture(t)
	f.addCommitment(t, "c1", 1000, domain.StatusRevealed)
	f.now = 100_000

	if _, err := f.slasher.SlashUnrevealed(context.Background(), "c1"); !errors.Is(err, domain.ErrAlreadyRevealed) {
		t.Fatalf("got %v, want ErrAlreadyRevealed", err)
	}
}

func TestSlashAllUnrevealed(t *testing.T) {
	f := newFixture(t)
	f.addCommitment(t, "c1", 1000, domain.StatusCommitted)
	f.addCommitment(t, "c2", 2000, domain.StatusCommitted)
	f.addCommitment(t, "c3", 3000, domain.StatusRevealed)
	f.now = 100_000

	results, err := f.slasher.SlashAllUnrevealed(context.Background(), 1)
	if err != nil {
		t.Fatalf("slash all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("slashed %d commitments, want 2", len(results))
	}
	if got := f.treasury.ReceivedByMemo(TreasuryMemoSlash); got != 1500 {
		t.Errorf("treasury received %d, want 1500", got)
	}
}
