package phase

import (
	"errors"
	"testing"

	"sealed-batch-dex/internal/domain"
)

func TestAt(t *testing.T) {
	const (
		start     = int64(1_000_000)
		commitDur = int64(60_000)
		revealDur = int64(30_000)
	)

	tests := []struct {
		name string
		now  int64
		want domain.Phase
	}{
		{"at start", start, domain.PhaseCommit},
		{"mid commit", start + 30_000, domain.PhaseCommit},
		{"last commit ms", start + commitDur - 1, domain.PhaseCommit},
		{"commit boundary is reveal", start + commitDur, domain.PhaseReveal},
		{"mid reveal", start + commitDur + 15_000, domain.PhaseReveal},
		{"last reveal ms", start + commitDur + revealDur - 1, domain.PhaseReveal},
		{"reveal boundary is settling", start + commitDur + revealDur, domain.PhaseSettling},
		{"long after", start + 10_000_000, domain.PhaseSettling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := At(start, commitDur, revealDur, tt.now); got != tt.want {
				t.Errorf("At(now=%d) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestTimeUntilChange(t *testing.T) {
	const (
		start     = int64(0)
		commitDur = int64(100)
		revealDur = int64(50)
	)

	if got := TimeUntilChange(start, commitDur, revealDur, 0); got != 100 {
		t.Errorf("at start: got %d, want 100", got)
	}
	if got := TimeUntilChange(start, commitDur, revealDur, 99); got != 1 {
		t.Errorf("end of commit: got %d, want 1", got)
	}
	if got := TimeUntilChange(start, commitDur, revealDur, 100); got != 50 {
		t.Errorf("start of reveal: got %d, want 50", got)
	}
	if got := TimeUntilChange(start, commitDur, revealDur, 150); got != 0 {
		t.Errorf("settling: got %d, want 0", got)
	}
}

func TestEffective_SettledWins(t *testing.T) {
	params := domain.DefaultParams()
	b := &domain.Batch{BatchID: 1, StartTime: 0, IsSettled: true}

	// Even at a timestamp inside the commit window, a settled batch is Settled.
	if got := Effective(b, params, 10); got != domain.PhaseSettled {
		t.Errorf("Effective on settled batch = %s, want %s", got, domain.PhaseSettled)
	}
}

func TestRequire(t *testing.T) {
	params := domain.DefaultParams()
	b := &domain.Batch{BatchID: 1, StartTime: 0}

	if err := Require(b, params, 10, domain.PhaseCommit); err != nil {
		t.Fatalf("Require(commit) during commit window: %v", err)
	}

	err := Require(b, params, 10, domain.PhaseReveal)
	if !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("Require(reveal) during commit window: got %v, want ErrWrongPhase", err)
	}

	var pe *domain.PhaseError
	if !errors.As(err, &pe) {
		t.Fatalf("error is not a *PhaseError: %v", err)
	}
	if pe.Got != domain.PhaseCommit || pe.Want != domain.PhaseReveal {
		t.Errorf("PhaseError = %+v", pe)
	}
	if pe.RemainingMs != params.CommitDurationMs-10 {
		t.Errorf("RemainingMs = %d, want %d", pe.RemainingMs, params.CommitDurationMs-10)
	}
}
