package idhash

import (
	"testing"

	"sealed-batch-dex/internal/domain"
)

func TestComputeCommitID(t *testing.T) {
	var hash domain.CommitHash
	copy(hash[:], []byte("some-commitment-digest-32-bytes!"))

	id := ComputeCommitID("Trader111", hash, 7, "nonce-a")

	if len(id) != 64 {
		t.Fatalf("commit id length = %d, want 64", len(id))
	}

	// Deterministic for identical inputs.
	if again := ComputeCommitID("Trader111", hash, 7, "nonce-a"); again != id {
		t.Errorf("same inputs produced different ids: %s vs %s", id, again)
	}

	// Any input change produces a different id.
	variants := []string{
		ComputeCommitID("Trader222", hash, 7, "nonce-a"),
		ComputeCommitID("Trader111", hash, 8, "nonce-a"),
		ComputeCommitID("Trader111", hash, 7, "nonce-b"),
	}
	var other domain.CommitHash
	copy(other[:], []byte("another-commitment-digest-32byte"))
	variants = append(variants, ComputeCommitID("Trader111", other, 7, "nonce-a"))

	for i, v := range variants {
		if v == id {
			t.Errorf("variant %d collided with base id", i)
		}
	}
}

func TestNewNonce_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		n := NewNonce()
		if n == "" {
			t.Fatal("empty nonce")
		}
		if _, dup := seen[n]; dup {
			t.Fatalf("duplicate nonce %s", n)
		}
		seen[n] = struct{}{}
	}
}
