package domain

// CommitmentStatus is the lifecycle state of a commitment.
// Transitions: Committed → Revealed → Executed, or Committed → Slashed.
// Never backward. A commitment belongs to exactly one batch for its
// entire life.
type CommitmentStatus string

// Commitment statuses
const (
	StatusCommitted CommitmentStatus = "committed"
	StatusRevealed  CommitmentStatus = "revealed"
	StatusExecuted  CommitmentStatus = "executed"
	StatusSlashed   CommitmentStatus = "slashed"
)

// HashSize is the byte length of a commitment hash.
const HashSize = 32

// CommitHash is the opaque digest of an order plus its secret.
type CommitHash [HashSize]byte

// Commitment is one hidden order pledge.
// Corresponds to the commitments table in PostgreSQL.
type Commitment struct {
	CommitID      string // hex sha256, see idhash.ComputeCommitID
	CommitHash    CommitHash
	PoolID        string
	BatchID       int64
	DepositAmount uint64
	Depositor     string // base58 trader address
	Status        CommitmentStatus
	CreatedAt     int64
}

// CanTransition reports whether moving from the commitment's current
// status to next is a legal forward transition.
func (c *Commitment) CanTransition(next CommitmentStatus) bool {
	switch c.Status {
	case StatusCommitted:
		return next == StatusRevealed || next == StatusSlashed
	case StatusRevealed:
		return next == StatusExecuted
	default:
		return false
	}
}
