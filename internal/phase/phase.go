// Package phase derives a batch's phase from elapsed time. All
// functions are pure: the clock is always an explicit argument.
package phase

import "sealed-batch-dex/internal/domain"

// At returns the time-derived phase of a batch started at startMs,
// observed at nowMs. The commit window is [start, start+commit); the
// reveal window is [start+commit, start+commit+reveal); afterwards the
// batch is eligible for settling. Whether it has actually settled is a
// batch fact, not a clock fact; see Effective.
func At(startMs, commitDurMs, revealDurMs, nowMs int64) domain.Phase {
	elapsed := nowMs - startMs
	switch {
	case elapsed < commitDurMs:
		return domain.PhaseCommit
	case elapsed < commitDurMs+revealDurMs:
		return domain.PhaseReveal
	default:
		return domain.PhaseSettling
	}
}

// Effective combines the clock-derived phase with the batch's settled
// flag. Once settled, a batch stays Settled regardless of the clock.
func Effective(b *domain.Batch, p domain.Params, nowMs int64) domain.Phase {
	if b.IsSettled {
		return domain.PhaseSettled
	}
	return At(b.StartTime, p.CommitDurationMs, p.RevealDurationMs, nowMs)
}

// TimeUntilChange returns how many milliseconds remain until the
// current time-derived phase ends, or 0 once the batch is past the
// reveal window (Settling has no deadline; it ends by settlement).
func TimeUntilChange(startMs, commitDurMs, revealDurMs, nowMs int64) int64 {
	elapsed := nowMs - startMs
	switch {
	case elapsed < commitDurMs:
		return commitDurMs - elapsed
	case elapsed < commitDurMs+revealDurMs:
		return commitDurMs + revealDurMs - elapsed
	default:
		return 0
	}
}

// Require asserts that the batch's effective phase equals want,
// returning a domain.PhaseError otherwise. Every state-mutating
// operation calls this first; a transition is never inferred implicitly.
func Require(b *domain.Batch, p domain.Params, nowMs int64, want domain.Phase) error {
	got := Effective(b, p, nowMs)
	if got != want {
		return &domain.PhaseError{
			Want:        want,
			Got:         got,
			RemainingMs: TimeUntilChange(b.StartTime, p.CommitDurationMs, p.RevealDurationMs, nowMs),
		}
	}
	return nil
}
