package domain

// Pool is a constant-product reserve pair for one asset pair.
// Reserves are mutated exactly once per batch, by settlement, never
// mid-batch. reserve_in * reserve_out is non-decreasing across any
// settlement: fees accrue to the invariant.
type Pool struct {
	PoolID     string
	AssetIn    string // canonical orientation: orders pay AssetIn, receive AssetOut
	AssetOut   string
	ReserveIn  uint64
	ReserveOut uint64
	FeeBps     uint32 // swap fee in basis points, taken on output
	MinDeposit uint64 // least accepted commitment deposit

	// LastSettledBatch is the batch whose settlement last touched the
	// reserves, 0 if never settled.
	LastSettledBatch int64
}

// Matches reports whether an order's asset pair fits the pool's
// canonical orientation.
func (p *Pool) Matches(o Order) bool {
	return o.AssetIn == p.AssetIn && o.AssetOut == p.AssetOut
}
