package domain

import (
	"errors"
	"fmt"
)

// Engine errors. Callers discriminate with errors.Is.
var (
	// ErrWrongPhase is returned when an operation is attempted outside
	// its valid window. Recoverable: wait and retry in the next phase.
	ErrWrongPhase = errors.New("wrong phase")

	// ErrHashMismatch is returned when a reveal does not match its
	// commitment hash. Fatal for that commitment: it stays Committed
	// and forfeits through the normal slash path.
	ErrHashMismatch = errors.New("reveal does not match commitment hash")

	// ErrDepositTooLow is returned when a commit deposit is below the
	// pool minimum.
	ErrDepositTooLow = errors.New("deposit below pool minimum")

	// ErrAlreadyRevealed is an idempotency guard, not a real failure:
	// the commitment already left status Committed.
	ErrAlreadyRevealed = errors.New("commitment already revealed")

	// ErrAlreadySettled is an idempotency guard: the batch settlement
	// already happened.
	ErrAlreadySettled = errors.New("batch already settled")

	// ErrAlreadySlashed is an idempotency guard: the commitment was
	// already slashed. Callers should treat it as success.
	ErrAlreadySlashed = errors.New("commitment already slashed")

	// ErrLimitNotSatisfied marks an economic rejection at the clearing
	// price. The order is refunded, never slashed.
	ErrLimitNotSatisfied = errors.New("limit not satisfied at clearing price")

	// ErrInvariantViolation is fatal: the settlement would lower the
	// constant product. It blocks settlement entirely and must never be
	// silently ignored.
	ErrInvariantViolation = errors.New("constant-product invariant violated")

	// ErrPriceDeviation is returned when the clearing price falls
	// outside the oracle deviation bound. Settlement is refused and may
	// be retried.
	ErrPriceDeviation = errors.New("clearing price outside oracle deviation bound")

	// ErrUnauthorized is returned when a cross-venue reveal is not
	// forwarded on behalf of the original depositor.
	ErrUnauthorized = errors.New("caller is not the depositor")
)

// PhaseError wraps ErrWrongPhase with the "too early / too late"
// context the caller needs to retry.
type PhaseError struct {
	Want        Phase
	Got         Phase
	RemainingMs int64 // time until the current phase ends, 0 once terminal
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("wrong phase: want %s, got %s (%dms until phase change)", e.Want, e.Got, e.RemainingMs)
}

// Unwrap makes errors.Is(err, ErrWrongPhase) hold.
func (e *PhaseError) Unwrap() error { return ErrWrongPhase }
