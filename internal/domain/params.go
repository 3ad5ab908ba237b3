package domain

import "fmt"

// Params are the protocol-level constants of the auction. They are
// fixed for the lifetime of a deployment and queryable by clients;
// they are never per-call parameters.
type Params struct {
	CommitDurationMs int64
	RevealDurationMs int64

	// SlashBps is the fraction of a never-revealed commitment's deposit
	// forfeited to the treasury, in basis points.
	SlashBps uint32

	// ProtocolFeeShareBps is the protocol's cut of each pool's output
	// fee, in basis points of the fee. The remainder is the LP share.
	ProtocolFeeShareBps uint32

	// MaxPriceDeviationBps bounds how far a clearing price may sit from
	// the oracle TWAP before settlement is refused. 0 disables the check.
	MaxPriceDeviationBps uint32

	// DepositAsset is the asset commitment deposits and priority bids
	// are paid in.
	DepositAsset string
}

// DefaultParams returns the protocol defaults.
func DefaultParams() Params {
	return Params{
		CommitDurationMs:     60_000,
		RevealDurationMs:     30_000,
		SlashBps:             5_000,
		ProtocolFeeShareBps:  1_666, // one sixth of the pool fee
		MaxPriceDeviationBps: 2_000,
		DepositAsset:         "USDC",
	}
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if p.CommitDurationMs <= 0 {
		return fmt.Errorf("params: commit duration must be positive")
	}
	if p.RevealDurationMs <= 0 {
		return fmt.Errorf("params: reveal duration must be positive")
	}
	if p.SlashBps > 10_000 {
		return fmt.Errorf("params: slash bps %d exceeds 10000", p.SlashBps)
	}
	if p.ProtocolFeeShareBps > 10_000 {
		return fmt.Errorf("params: protocol fee share bps %d exceeds 10000", p.ProtocolFeeShareBps)
	}
	if p.DepositAsset == "" {
		return fmt.Errorf("params: empty deposit asset")
	}
	return nil
}
