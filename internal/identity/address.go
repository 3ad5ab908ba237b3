// Package identity parses and validates trader addresses.
// Addresses are base58-encoded 32-byte ed25519 public keys.
package identity

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressSize is the decoded byte length of an address.
const AddressSize = 32

// Address errors
var (
	ErrBadEncoding = errors.New("address is not valid base58")
	ErrBadLength   = errors.New("address must decode to 32 bytes")
	ErrNotOnCurve  = errors.New("address is not a valid curve point")
)

// Parse decodes and validates a trader address. The on-curve check
// rejects byte strings that can never correspond to a signing key.
func Parse(addr string) ([AddressSize]byte, error) {
	var out [AddressSize]byte

	raw, err := base58.Decode(addr)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	if len(raw) != AddressSize {
		return out, fmt.Errorf("%w: got %d", ErrBadLength, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return out, fmt.Errorf("%w: %v", ErrNotOnCurve, err)
	}

	copy(out[:], raw)
	return out, nil
}

// Valid reports whether addr parses as a trader address.
func Valid(addr string) bool {
	_, err := Parse(addr)
	return err == nil
}

// Encode renders a raw 32-byte key as a base58 address.
func Encode(raw [AddressSize]byte) string {
	return base58.Encode(raw[:])
}
