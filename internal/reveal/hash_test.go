package reveal

import (
	"fmt"
	"math/rand"
	"testing"

	"sealed-batch-dex/internal/domain"
)

func randomOrder(rng *rand.Rand) domain.Order {
	return domain.Order{
		Trader:       fmt.Sprintf("trader-%d", rng.Int63()),
		AssetIn:      "USDC",
		AssetOut:     "SOL",
		AmountIn:     1 + uint64(rng.Int63n(1_000_000_000)),
		MinAmountOut: uint64(rng.Int63n(1_000_000_000)),
	}
}

func randomSecret(rng *rand.Rand) domain.Secret {
	var s domain.Secret
	rng.Read(s[:])
	return s
}

// A digest must not let an observer distinguish which order was
// committed: every (order, secret) pair has to land on a fresh digest,
// and the same order under two secrets must diverge.
func TestHashCommitment_Hiding(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const samples = 2000

	seen := make(map[domain.CommitHash]bool, samples)
	for i := 0; i < samples; i++ {
		h := HashCommitment(randomOrder(rng), randomSecret(rng))
		if seen[h] {
			t.Fatalf("digest collision after %d samples", i)
		}
		seen[h] = true
	}

	// Same order, different secrets.
	o := randomOrder(rng)
	if HashCommitment(o, randomSecret(rng)) == HashCommitment(o, randomSecret(rng)) {
		t.Error("two secrets produced the same digest for one order")
	}

	// Same secret, orders differing in a single field.
	s := randomSecret(rng)
	base := HashCommitment(o, s)
	variants := []domain.Order{o, o, o, o, o}
	variants[0].Trader += "x"
	variants[1].AssetIn = "WETH"
	variants[2].AssetOut = "WETH"
	variants[3].AmountIn++
	variants[4].MinAmountOut++
	for i, v := range variants {
		if HashCommitment(v, s) == base {
			t.Errorf("variant %d hashes like the original order", i)
		}
	}
}

// Guessing an order without its secret must not reproduce the digest,
// even when the guess is the committed order itself.
func TestHashCommitment_SecretBinding(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	o := randomOrder(rng)
	secret := randomSecret(rng)
	h := HashCommitment(o, secret)

	for i := 0; i < 1000; i++ {
		if HashCommitment(o, randomSecret(rng)) == h {
			t.Fatal("digest reproduced without the committed secret")
		}
	}

	// A single flipped secret bit diverges too.
	flipped := secret
	flipped[0] ^= 1
	if HashCommitment(o, flipped) == h {
		t.Error("one-bit secret change kept the digest")
	}
}
