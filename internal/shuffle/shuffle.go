// Package shuffle produces the deterministic settlement permutation of
// a batch. The seed is derived from secrets every participant committed
// to before seeing anyone else's, so no single party can steer it as
// long as one honest secret is unknown to them in advance.
package shuffle

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"sealed-batch-dex/internal/domain"
)

// Fold XORs a revealed secret into the accumulator. Called once per
// valid reveal, unconditionally, so the seed depends on the full
// revealed set and never on settlement outcomes.
func Fold(accum, secret domain.Secret) domain.Secret {
	var out domain.Secret
	for i := range accum {
		out[i] = accum[i] ^ secret[i]
	}
	return out
}

// Seal derives the batch seed once the reveal window closes:
// sha3-256(accum || be64(n)) where n is the reveal count. Including n
// separates batches whose accumulators collide (e.g. zero reveals vs
// two identical secrets).
func Seal(accum domain.Secret, n int) domain.Secret {
	var buf [domain.SecretSize + 8]byte
	copy(buf[:domain.SecretSize], accum[:])
	binary.BigEndian.PutUint64(buf[domain.SecretSize:], uint64(n))
	return sha3.Sum256(buf[:])
}

// Permutation applies a seeded Fisher-Yates shuffle to the indices
// [0, n). Bit-for-bit reproducible for the same seed and n, and
// auditable by any third party holding the revealed secrets.
func Permutation(seed domain.Secret, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	s := &stream{seed: seed}
	for i := n - 1; i >= 1; i-- {
		j := int(s.next() % uint64(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// stream yields uint64 draws from sha3-256(seed || be64(counter)),
// consuming each digest eight bytes at a time.
type stream struct {
	seed    domain.Secret
	counter uint64
	block   [32]byte
	off     int
}

func (s *stream) next() uint64 {
	if s.off == 0 || s.off+8 > len(s.block) {
		var buf [domain.SecretSize + 8]byte
		copy(buf[:domain.SecretSize], s.seed[:])
		binary.BigEndian.PutUint64(buf[domain.SecretSize:], s.counter)
		s.block = sha3.Sum256(buf[:])
		s.counter++
		s.off = 0
	}
	v := binary.BigEndian.Uint64(s.block[s.off : s.off+8])
	s.off += 8
	return v
}

// Compute folds the secrets of revealed orders, seals the seed, and
// returns the batch's execution order. The orders slice must be in
// reveal-index order; the permutation is over those indices.
//
// The fold is recomputed from the stored orders rather than read from
// the batch's running seed accumulator: the orders are the durable
// record, and the accumulator is a mirror kept for observers. XOR is
// order-independent, so the two agree whenever every stored order was
// folded exactly once.
func Compute(batchID int64, orders []*domain.RevealedOrder, nowMs int64) *domain.ExecutionOrder {
	var accum domain.Secret
	for _, o := range orders {
		accum = Fold(accum, o.Secret)
	}
	seed := Seal(accum, len(orders))
	return &domain.ExecutionOrder{
		BatchID:     batchID,
		Seed:        seed,
		Permutation: Permutation(seed, len(orders)),
		ComputedAt:  nowMs,
	}
}
