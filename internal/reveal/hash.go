package reveal

import (
	"golang.org/x/crypto/sha3"

	"sealed-batch-dex/internal/domain"
)

// HashCommitment computes the commitment digest of an order and its
// secret: sha3-256(order.Encode() || secret). Clients compute the same
// digest locally before the commit phase; the engine recomputes it at
// reveal time and requires equality. Nothing about the order is
// derivable from the digest without the secret.
func HashCommitment(o domain.Order, secret domain.Secret) domain.CommitHash {
	enc := o.Encode()
	buf := make([]byte, 0, len(enc)+domain.SecretSize)
	buf = append(buf, enc...)
	buf = append(buf, secret[:]...)
	return sha3.Sum256(buf)
}
