package domain

// ExecutionOrder is the index permutation over a batch's revealed
// orders, produced once by the deterministic shuffle and immutable
// afterwards. Permutation[i] is the reveal index settled in logical
// position i before priority-bid promotion.
type ExecutionOrder struct {
	BatchID     int64
	Seed        Secret // sha3-256 of the sealed XOR accumulator and the reveal count
	Permutation []int
	ComputedAt  int64
}

// OutcomeKind classifies how a revealed order left its batch.
type OutcomeKind string

// Revealed-order outcomes
const (
	OutcomeExecuted OutcomeKind = "executed" // traded at the clearing price
	OutcomeRefunded OutcomeKind = "refunded" // limit not satisfied, reclaim, or pool mismatch
	OutcomeSkipped  OutcomeKind = "skipped"  // cross-venue bid forwarding failed
)

// OrderOutcome records the settlement result for one revealed order.
type OrderOutcome struct {
	CommitID    string
	RevealIndex int
	Kind        OutcomeKind
	Reason      string // human-readable cause for non-executed outcomes
	AmountIn    uint64
	GrossOut    uint64 // pro-rata share of pool output before fees
	Fee         uint64 // total output fee (LP + protocol)
	NetOut      uint64 // credited to the trader
}

// Settlement is the per-pool result of settling one batch.
// Corresponds to the settlements table in ClickHouse.
type Settlement struct {
	BatchID int64
	PoolID  string

	// Clearing price as an exact rational: gross output over total
	// input. Price is the float form for analytics only.
	ClearingPriceNum uint64
	ClearingPriceDen uint64
	Price            float64

	TotalIn     uint64 // sum of executed inputs
	TotalOut    uint64 // sum of net outputs credited
	LPFee       uint64 // retained by reserves
	ProtocolFee uint64 // forwarded to treasury
	Dust        uint64 // flooring remainder retained by reserves

	Included int
	Excluded int

	ReserveInAfter  uint64
	ReserveOutAfter uint64

	ExecutedAt int64
}
