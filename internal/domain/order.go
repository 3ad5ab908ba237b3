package domain

import (
	"encoding/binary"
	"fmt"
)

// Order is the true content of a commitment: a single swap request.
type Order struct {
	Trader       string // base58 trader address
	AssetIn      string // asset identifier
	AssetOut     string
	AmountIn     uint64
	MinAmountOut uint64 // limit: least acceptable output
}

// Encode returns the canonical byte encoding hashed into a commitment.
// Fields are length-prefixed so no two distinct orders share an encoding.
func (o Order) Encode() []byte {
	buf := make([]byte, 0, 3*8+len(o.Trader)+len(o.AssetIn)+len(o.AssetOut)+3*4)
	appendStr := func(s string) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		buf = append(buf, n[:]...)
		buf = append(buf, s...)
	}
	appendStr(o.Trader)
	appendStr(o.AssetIn)
	appendStr(o.AssetOut)
	var a [8]byte
	binary.BigEndian.PutUint64(a[:], o.AmountIn)
	buf = append(buf, a[:]...)
	binary.BigEndian.PutUint64(a[:], o.MinAmountOut)
	buf = append(buf, a[:]...)
	return buf
}

// Validate checks field-level sanity. Pool/phase checks happen elsewhere.
func (o Order) Validate() error {
	if o.Trader == "" {
		return fmt.Errorf("order: empty trader")
	}
	if o.AssetIn == "" || o.AssetOut == "" {
		return fmt.Errorf("order: empty asset identifier")
	}
	if o.AssetIn == o.AssetOut {
		return fmt.Errorf("order: asset_in equals asset_out")
	}
	if o.AmountIn == 0 {
		return fmt.Errorf("order: zero amount_in")
	}
	return nil
}

// RevealedOrder is the opened form of a commitment once the preimage
// check has passed. It exists if and only if its parent commitment is
// in status Revealed or Executed.
type RevealedOrder struct {
	CommitID    string
	BatchID     int64
	PoolID      string
	RevealIndex int // assignment order within the batch, 0-based
	Order       Order
	Secret      Secret
	PriorityBid uint64
	SourceVenue string // originating venue for cross-venue reveals, empty for local
	Reclaim     bool   // reveal made only to reclaim the deposit; never trades
	RevealedAt  int64
}
