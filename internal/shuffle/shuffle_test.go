package shuffle

import (
	"testing"

	"sealed-batch-dex/internal/domain"
)

func secretOf(b byte) domain.Secret {
	var s domain.Secret
	for i := range s {
		s[i] = b
	}
	return s
}

func TestFold_OrderIndependent(t *testing.T) {
	a, b, c := secretOf(0x11), secretOf(0x22), secretOf(0x33)

	var zero domain.Secret
	abc := Fold(Fold(Fold(zero, a), b), c)
	cba := Fold(Fold(Fold(zero, c), b), a)
	if abc != cba {
		t.Error("XOR fold depends on reveal order")
	}

	// Folding a secret twice cancels it.
	if Fold(Fold(zero, a), a) != zero {
		t.Error("double fold did not cancel")
	}
}

func TestPermutation_Deterministic(t *testing.T) {
	seed := Seal(secretOf(0xAB), 10)

	p1 := Permutation(seed, 10)
	p2 := Permutation(seed, 10)

	if len(p1) != 10 {
		t.Fatalf("len = %d, want 10", len(p1))
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("permutation not reproducible at %d: %v vs %v", i, p1, p2)
		}
	}

	// Must be a permutation of [0, n).
	seen := make(map[int]bool)
	for _, v := range p1 {
		if v < 0 || v >= 10 || seen[v] {
			t.Fatalf("not a permutation: %v", p1)
		}
		seen[v] = true
	}
}

func TestPermutation_SeedSensitivity(t *testing.T) {
	const n = 64

	base := Permutation(Seal(secretOf(0x01), n), n)

	// Flipping a single bit of one secret must change the permutation.
	tweaked := secretOf(0x01)
	tweaked[31] ^= 0x01
	other := Permutation(Seal(tweaked, n), n)

	same := true
	for i := range base {
		if base[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("one-bit secret change left permutation unchanged")
	}
}

func TestSeal_CountMatters(t *testing.T) {
	accum := secretOf(0x00)
	if Seal(accum, 0) == Seal(accum, 2) {
		t.Error("equal accumulators with different counts produced the same seed")
	}
}

func TestPermutation_SmallSizes(t *testing.T) {
	seed := Seal(secretOf(0x7F), 1)

	if got := Permutation(seed, 0); len(got) != 0 {
		t.Errorf("n=0: %v", got)
	}
	if got := Permutation(seed, 1); len(got) != 1 || got[0] != 0 {
		t.Errorf("n=1: %v", got)
	}
}

func TestCompute(t *testing.T) {
	orders := []*domain.RevealedOrder{
		{CommitID: "a", RevealIndex: 0, Secret: secretOf(0x01)},
		{CommitID: "b", RevealIndex: 1, Secret: secretOf(0x02)},
		{CommitID: "c", RevealIndex: 2, Secret: secretOf(0x03)},
	}

	e1 := Compute(5, orders, 1000)
	e2 := Compute(5, orders, 2000)

	if e1.BatchID != 5 || len(e1.Permutation) != 3 {
		t.Fatalf("execution order: %+v", e1)
	}
	if e1.Seed != e2.Seed {
		t.Error("seed not deterministic")
	}
	for i := range e1.Permutation {
		if e1.Permutation[i] != e2.Permutation[i] {
			t.Fatalf("permutation differs: %v vs %v", e1.Permutation, e2.Permutation)
		}
	}

	// Changing any one secret changes the seed.
	orders[1].Secret = secretOf(0x20)
	e3 := Compute(5, orders, 1000)
	if e3.Seed == e1.Seed {
		t.Error("seed unchanged after secret change")
	}
}
