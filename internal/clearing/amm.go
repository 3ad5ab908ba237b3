package clearing

import "github.com/holiman/uint256"

// grossOutput computes the constant-product output for swapping
// totalIn against reserves (reserveIn, reserveOut), before fees:
// out = reserveOut * totalIn / (reserveIn + totalIn), floored.
// Intermediate math is 256-bit so reserve-scale products cannot
// overflow. The floor keeps the post-swap product >= the pre-swap
// product.
func grossOutput(reserveIn, reserveOut uint64, totalIn *uint256.Int) uint64 {
	if totalIn.IsZero() || reserveOut == 0 {
		return 0
	}

	rIn := uint256.NewInt(reserveIn)
	rOut := uint256.NewInt(reserveOut)

	num := new(uint256.Int).Mul(rOut, totalIn)
	den := new(uint256.Int).Add(rIn, totalIn)
	return new(uint256.Int).Div(num, den).Uint64()
}

// proRata computes floor(total * part / whole) in 256-bit math.
func proRata(total uint64, part, whole *uint256.Int) uint64 {
	if whole.IsZero() {
		return 0
	}
	num := new(uint256.Int).Mul(uint256.NewInt(total), part)
	return new(uint256.Int).Div(num, whole).Uint64()
}

// feeOn computes floor(amount * bps / 10000).
func feeOn(amount uint64, bps uint32) uint64 {
	num := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	return new(uint256.Int).Div(num, uint256.NewInt(10_000)).Uint64()
}

// productNonDecreasing reports whether the reserve product did not
// shrink across a settlement.
func productNonDecreasing(rInBefore, rOutBefore, rInAfter, rOutAfter uint64) bool {
	before := new(uint256.Int).Mul(uint256.NewInt(rInBefore), uint256.NewInt(rOutBefore))
	after := new(uint256.Int).Mul(uint256.NewInt(rInAfter), uint256.NewInt(rOutAfter))
	return after.Cmp(before) >= 0
}
