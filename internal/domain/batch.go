// Package domain contains the core records of the batch auction engine.
// All timestamps are unix milliseconds. Amounts are integer base units.
package domain

// Phase is the lifecycle stage of a batch, derived from elapsed time.
type Phase string

// Batch phases
const (
	PhaseCommit   Phase = "commit"
	PhaseReveal   Phase = "reveal"
	PhaseSettling Phase = "settling"
	PhaseSettled  Phase = "settled"
)

// SecretSize is the byte length of a reveal secret and of the
// accumulated shuffle seed material.
const SecretSize = 32

// Secret is the per-order secret disclosed at reveal time.
type Secret [SecretSize]byte

// Batch is one auction round for the whole system (not per pool).
// Batches are append-only history: a settled batch is never deleted.
type Batch struct {
	BatchID   int64 // monotonically increasing, starts at 1
	StartTime int64 // unix ms when the commit window opened
	Phase     Phase

	// SeedAccum is the XOR of every valid reveal's secret. It is folded
	// on each reveal and sealed into the shuffle seed when the reveal
	// window closes.
	SeedAccum Secret

	PriorityBidTotal uint64 // sum of all revealed priority bids
	RevealedCount    int    // number of valid reveals so far
	IsSettled        bool

	CreatedAt int64
}

// RevealClosed reports whether the reveal window end has passed,
// i.e. the batch is in or past the Settling phase.
func (b *Batch) RevealClosed() bool {
	return b.Phase == PhaseSettling || b.Phase == PhaseSettled
}
