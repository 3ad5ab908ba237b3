// Package collab declares the external collaborators the auction
// engine consumes: asset custody, treasury, price oracle, and
// depositor authorization. The engine never implements custody or
// governance itself; it only calls these interfaces.
package collab

import (
	"context"
	"errors"
)

// ErrInsufficientFunds is returned by an AssetLedger when a transfer-in
// cannot be covered.
var ErrInsufficientFunds = errors.New("insufficient funds")

// AssetLedger is the asset-custody collaborator. Both operations are
// atomic: they either fully happen or report an error.
type AssetLedger interface {
	// TransferIn moves amount of asset from the trader into engine escrow.
	TransferIn(ctx context.Context, trader, asset string, amount uint64) error

	// TransferOut moves amount of asset from engine escrow to the trader.
	TransferOut(ctx context.Context, trader, asset string, amount uint64) error
}

// Treasury is the sink for slashed deposits, protocol fees, and
// priority bids.
type Treasury interface {
	// Deposit credits amount of asset to the treasury. The memo names
	// the source flow (slash, protocol fee, priority bid).
	Deposit(ctx context.Context, asset string, amount uint64, memo string) error
}

// Oracle supplies a time-weighted reference price per pool. It is used
// only to bound clearing-price deviation, never to set the price.
type Oracle interface {
	// TWAP returns the reference price of a pool's AssetOut per AssetIn.
	// A zero price means no reference is available and the deviation
	// check is skipped.
	TWAP(ctx context.Context, poolID string) (float64, error)
}

// Authorizer answers whether a caller is the original depositor of a
// commitment, for cross-venue reveal forwarding.
type Authorizer interface {
	IsDepositor(ctx context.Context, commitID, caller string) (bool, error)
}
