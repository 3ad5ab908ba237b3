package identity

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func genAddress(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base58.Encode(pub)
}

func TestParse_Valid(t *testing.T) {
	addr := genAddress(t)

	raw, err := Parse(addr)
	if err != nil {
		t.Fatalf("Parse(%s): %v", addr, err)
	}
	if Encode(raw) != addr {
		t.Errorf("round trip mismatch: %s vs %s", Encode(raw), addr)
	}
	if !Valid(addr) {
		t.Errorf("Valid(%s) = false", addr)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want error
	}{
		{"not base58", "0OIl+/", ErrBadEncoding},
		{"too short", base58.Encode([]byte("short")), ErrBadLength},
		{"too long", base58.Encode(make([]byte, 40)), ErrBadLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.addr); !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.addr, err, tt.want)
			}
		})
	}
}

func TestParse_OffCurve(t *testing.T) {
	// 32 bytes that do not decode to a curve point: y coordinate of all
	// 0xFF is larger than the field prime.
	raw := make([]byte, AddressSize)
	for i := range raw {
		raw[i] = 0xFF
	}

	if _, err := Parse(base58.Encode(raw)); !errors.Is(err, ErrNotOnCurve) {
		t.Errorf("off-curve bytes accepted: %v", err)
	}
}
