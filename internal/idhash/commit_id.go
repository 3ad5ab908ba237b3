// Package idhash derives deterministic identifiers for auction records.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"sealed-batch-dex/internal/domain"
)

// ComputeCommitID computes a commitment identifier using SHA256.
// Formula: SHA256(depositor|commit_hash|batch_id|nonce)
// Returns hex-encoded hash (64 characters).
//
// The nonce makes the ID unpredictable before submission: two users
// cannot be steered into colliding identifiers even when they submit
// the same hash to the same batch.
func ComputeCommitID(
	depositor string,
	commitHash domain.CommitHash,
	batchID int64,
	nonce string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s",
		depositor,
		hex.EncodeToString(commitHash[:]),
		batchID,
		nonce,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// NewNonce returns a fresh random per-call nonce.
func NewNonce() string {
	return uuid.NewString()
}
