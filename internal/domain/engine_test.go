package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func introTech() *Session {
	return NewSession("interview-1", "", []Phase{
		{Name: "Intro", DurationMinutes: 5},
		{Name: "Tech", DurationMinutes: 10, IsSkippable: true},
	}, t0)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestComputeLiveStateAfterFirstPhase(t *testing.T) {
	s := introTech()

	live := ComputeLiveState(s, t0.Add(5*time.Minute+time.Second))

	if live.CurrentPhase != "Tech" {
		t.Fatalf("current phase = %q, want Tech", live.CurrentPhase)
	}
	if !approx(live.Elapsed.Minutes(), 5.02) {
		t.Fatalf("elapsed minutes = %.3f, want ~5.02", live.Elapsed.Minutes())
	}
	if live.IsCompleted {
		t.Fatalf("session should not be completed")
	}
	if live.PhaseElapsed != time.Second {
		t.Fatalf("phase elapsed = %v, want 1s", live.PhaseElapsed)
	}
	if live.Total != 15*time.Minute {
		t.Fatalf("total = %v, want 15m", live.Total)
	}
}

func TestComputeLiveStateDoesNotMutate(t *testing.T) {
	s := introTech()
	before := s.Clone()

	ComputeLiveState(s, t0.Add(time.Hour))

	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("session mutated (-before +after):\n%s", diff)
	}
}

func TestComputeLiveStateProgress(t *testing.T) {
	tests := []struct {
		name string
		at   time.Duration
		want float64
	}{
		{name: "start", at: 0, want: 0},
		{name: "half of first phase", at: 150 * time.Second, want: 0.5},
		{name: "half of second phase", at: 10 * time.Minute, want: 0.5},
		{name: "completed", at: 2 * time.Hour, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := ComputeLiveState(introTech(), t0.Add(tt.at))

			if !approx(live.Progress, tt.want) {
				t.Fatalf("progress = %.3f, want %.3f", live.Progress, tt.want)
			}
		})
	}
}

func TestAdvanceCompletesSeveralPhases(t *testing.T) {
	s := NewSession("s", "", []Phase{
		{Name: "a", DurationMinutes: 1},
		{Name: "b", DurationMinutes: 1},
		{Name: "c", DurationMinutes: 1},
	}, t0)

	transitions := Advance(s, t0.Add(150*time.Second))

	if len(transitions) != 2 {
		t.Fatalf("transitions = %d, want 2", len(transitions))
	}
	if s.CurrentIdx != 2 {
		t.Fatalf("current index = %d, want 2", s.CurrentIdx)
	}
	if s.Phases[2].Status != PhaseActive || s.Phases[2].StartOffset != 2*time.Minute {
		t.Fatalf("unexpected active phase: %+v", s.Phases[2])
	}
	for i := 0; i < 2; i++ {
		rec := s.Phases[i]
		if rec.Status != PhaseCompleted {
			t.Errorf("phase %d status = %s, want completed", i, rec.Status)
		}
		if rec.CompletedAtOffset == nil || *rec.CompletedAtOffset != time.Duration(i+1)*time.Minute {
			t.Errorf("phase %d completed at %v", i, rec.CompletedAtOffset)
		}
	}

	transitions = Advance(s, t0.Add(3*time.Minute))

	if s.State != StateCompleted {
		t.Fatalf("state = %s, want completed", s.State)
	}
	if s.CurrentIdx != 2 {
		t.Fatalf("current index = %d, want last", s.CurrentIdx)
	}
	if got := transitions[len(transitions)-1].Type; got != TransitionSessionCompleted {
		t.Fatalf("last transition = %s, want session_completed", got)
	}
	if !s.CompletedAt.Equal(t0.Add(3 * time.Minute)) {
		t.Fatalf("completed at = %v", s.CompletedAt)
	}
}

func TestAdvanceReportsTimeImpact(t *testing.T) {
	s := introTech()

	transitions := Advance(s, t0.Add(6*time.Minute))

	impact := transitions[0].Impact
	if impact == nil {
		t.Fatalf("expected time impact")
	}
	if impact.ExpectedMinutes != 5 || impact.ActualMinutes != 5 || impact.IsOverTime {
		t.Fatalf("unexpected impact: %+v", impact)
	}
}

func TestTotalDurationMatchesCompletion(t *testing.T) {
	s := introTech()
	total := time.Duration(s.TotalDurationMinutes()) * time.Minute

	if live := ComputeLiveState(s, t0.Add(total-time.Second)); live.IsCompleted {
		t.Fatalf("completed one second early")
	}
	if live := ComputeLiveState(s, t0.Add(total)); !live.IsCompleted {
		t.Fatalf("not completed at total duration")
	}
}

func TestStatusIdempotentOnCompletedSession(t *testing.T) {
	s := introTech()
	Advance(s, t0.Add(20*time.Minute))

	first := ComputeLiveState(s, t0.Add(20*time.Minute))
	for _, later := range []time.Duration{time.Hour, 5 * time.Hour, 48 * time.Hour} {
		got := ComputeLiveState(s, t0.Add(later))
		if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("live state changed after completion (-first +got):\n%s", diff)
		}
	}
	if first.Elapsed != 15*time.Minute {
		t.Fatalf("final elapsed = %v, want 15m", first.Elapsed)
	}
}

func TestSkipLastPhaseCompletesSession(t *testing.T) {
	s := introTech()

	transitions, err := Skip(s, t0.Add(5*time.Minute+time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	live := ComputeLiveState(s, t0.Add(5*time.Minute+time.Second))
	if live.CurrentPhase != "Tech" || !live.IsSkipped {
		t.Fatalf("expected Tech skipped, got %+v", live)
	}
	if !live.IsCompleted {
		t.Fatalf("expected session completed")
	}
	if s.Phases[1].Status != PhaseSkipped {
		t.Fatalf("tech status = %s, want skipped", s.Phases[1].Status)
	}

	want := []TransitionType{TransitionPhaseCompleted, TransitionPhaseSkipped, TransitionSessionCompleted}
	got := make([]TransitionType, len(transitions))
	for i, tr := range transitions {
		got[i] = tr.Type
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestSkipMovesNextPhaseStart(t *testing.T) {
	s := NewSession("s", "", []Phase{
		{Name: "a", DurationMinutes: 10, IsSkippable: true},
		{Name: "b", DurationMinutes: 10},
	}, t0)

	if _, err := Skip(s, t0.Add(3*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.CurrentIdx != 1 {
		t.Fatalf("current index = %d, want 1", s.CurrentIdx)
	}
	if s.Phases[1].StartOffset != 3*time.Minute {
		t.Fatalf("next phase starts at %v, want 3m", s.Phases[1].StartOffset)
	}

	if live := ComputeLiveState(s, t0.Add(12*time.Minute)); live.IsCompleted {
		t.Fatalf("completed before skipped-adjusted end")
	}
	if live := ComputeLiveState(s, t0.Add(13*time.Minute)); !live.IsCompleted {
		t.Fatalf("expected completion at 13m")
	}

	// the skipped status is permanent
	Advance(s, t0.Add(time.Hour))
	if s.Phases[0].Status != PhaseSkipped {
		t.Fatalf("skipped phase status changed to %s", s.Phases[0].Status)
	}
}

func TestSkipNotSkippable(t *testing.T) {
	s := introTech()

	_, err := Skip(s, t0.Add(time.Minute))

	if !errors.Is(err, ErrPhaseNotSkippable) {
		t.Fatalf("expected ErrPhaseNotSkippable, got %v", err)
	}
	if s.CurrentIdx != 0 {
		t.Fatalf("current index = %d, want 0", s.CurrentIdx)
	}
}

func TestSkipCompletedSession(t *testing.T) {
	s := introTech()

	if _, err := Skip(s, t0.Add(time.Hour)); !errors.Is(err, ErrSessionAlreadyCompleted) {
		t.Fatalf("expected ErrSessionAlreadyCompleted, got %v", err)
	}
}

func TestPauseResumeExcludesGap(t *testing.T) {
	s := NewSession("s", "", []Phase{{Name: "long", DurationMinutes: 60}}, t0)

	if _, err := Pause(s, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := Resume(s, t0.Add(5*time.Minute)); err != nil {
		t.Fatalf("resume: %v", err)
	}

	live := ComputeLiveState(s, t0.Add(6*time.Minute))
	if !approx(live.Elapsed.Minutes(), 3) {
		t.Fatalf("elapsed minutes = %.3f, want 3", live.Elapsed.Minutes())
	}
}

func TestAccumulatedPausedSumsGaps(t *testing.T) {
	s := NewSession("s", "", []Phase{{Name: "long", DurationMinutes: 120}}, t0)
	gaps := []time.Duration{30 * time.Second, 2 * time.Minute, 45 * time.Second}

	now := t0
	var want time.Duration
	for _, gap := range gaps {
		now = now.Add(time.Minute)
		if _, err := Pause(s, now); err != nil {
			t.Fatalf("pause: %v", err)
		}
		now = now.Add(gap)
		if _, err := Resume(s, now); err != nil {
			t.Fatalf("resume: %v", err)
		}
		want += gap
	}

	if s.AccumulatedPaused != want {
		t.Fatalf("accumulated paused = %v, want %v", s.AccumulatedPaused, want)
	}
}

func TestElapsedMonotonicWhileRunningFrozenWhilePaused(t *testing.T) {
	s := NewSession("s", "", []Phase{
		{Name: "a", DurationMinutes: 3},
		{Name: "b", DurationMinutes: 4},
	}, t0)

	var last time.Duration
	for step := 0; step < 200; step++ {
		now := t0.Add(time.Duration(step) * 7 * time.Second)
		switch step % 40 {
		case 10:
			if _, err := Pause(s, now); err != nil && !errors.Is(err, ErrInvalidSessionState) {
				t.Fatalf("pause: %v", err)
			}
		case 25:
			if _, err := Resume(s, now); err != nil && !errors.Is(err, ErrInvalidSessionState) {
				t.Fatalf("resume: %v", err)
			}
		}

		elapsed := ComputeLiveState(s, now).Elapsed
		if elapsed < last {
			t.Fatalf("elapsed decreased at step %d: %v < %v", step, elapsed, last)
		}
		if s.State == StatePaused && elapsed != last && step%40 != 10 {
			t.Fatalf("elapsed moved while paused at step %d", step)
		}
		last = elapsed
	}
}

func TestResumeRunningSession(t *testing.T) {
	s := introTech()
	before := s.Clone()

	_, err := Resume(s, t0.Add(time.Minute))

	if !errors.Is(err, ErrInvalidSessionState) {
		t.Fatalf("expected ErrInvalidSessionState, got %v", err)
	}
	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("session changed (-before +after):\n%s", diff)
	}
}

func TestPauseTwice(t *testing.T) {
	s := introTech()

	if _, err := Pause(s, t0.Add(time.Minute)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := Pause(s, t0.Add(2*time.Minute)); !errors.Is(err, ErrInvalidSessionState) {
		t.Fatalf("expected ErrInvalidSessionState, got %v", err)
	}
}

func TestPauseCompletedSession(t *testing.T) {
	s := introTech()

	if _, err := Pause(s, t0.Add(time.Hour)); !errors.Is(err, ErrInvalidSessionState) {
		t.Fatalf("expected ErrInvalidSessionState, got %v", err)
	}
}

func TestPausedSessionDoesNotAdvance(t *testing.T) {
	s := introTech()
	if _, err := Pause(s, t0.Add(4*time.Minute)); err != nil {
		t.Fatalf("pause: %v", err)
	}

	live := ComputeLiveState(s, t0.Add(time.Hour))

	if live.CurrentPhase != "Intro" || live.State != StatePaused {
		t.Fatalf("unexpected live state: %+v", live)
	}
	if live.Elapsed != 4*time.Minute {
		t.Fatalf("elapsed = %v, want 4m", live.Elapsed)
	}
}

func TestCompletedAtAccountsForPauses(t *testing.T) {
	s := introTech()
	if _, err := Pause(s, t0.Add(time.Minute)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := Resume(s, t0.Add(11*time.Minute)); err != nil {
		t.Fatalf("resume: %v", err)
	}

	Advance(s, t0.Add(time.Hour))

	if !s.CompletedAt.Equal(t0.Add(25 * time.Minute)) {
		t.Fatalf("completed at = %v, want t0+25m", s.CompletedAt)
	}
}

func TestShorten(t *testing.T) {
	s := NewSession("s", "", []Phase{
		{Name: "a", DurationMinutes: 5},
		{Name: "b", DurationMinutes: 10, IsShortenable: true},
	}, t0)

	if _, err := Shorten(s, 1, 3, t0.Add(time.Minute)); err != nil {
		t.Fatalf("shorten: %v", err)
	}

	if got := s.TotalDurationMinutes(); got != 8 {
		t.Fatalf("total = %d, want 8", got)
	}
	if live := ComputeLiveState(s, t0.Add(8*time.Minute)); !live.IsCompleted {
		t.Fatalf("expected completion at shortened total")
	}
}

func TestShortenRejected(t *testing.T) {
	phases := []Phase{
		{Name: "a", DurationMinutes: 5, IsShortenable: true},
		{Name: "b", DurationMinutes: 10, IsShortenable: true},
		{Name: "c", DurationMinutes: 10},
		{Name: "d", DurationMinutes: 10, IsShortenable: true},
	}
	tests := []struct {
		name    string
		idx     int
		minutes int
		at      time.Duration
		want    error
	}{
		{name: "active phase", idx: 0, minutes: 2, at: time.Minute, want: ErrPhaseNotShortenable},
		{name: "completed phase", idx: 0, minutes: 2, at: 6 * time.Minute, want: ErrPhaseNotShortenable},
		{name: "not shortenable", idx: 2, minutes: 2, at: time.Minute, want: ErrPhaseNotShortenable},
		{name: "longer duration", idx: 3, minutes: 12, at: time.Minute, want: ErrInvalidSchedule},
		{name: "zero duration", idx: 3, minutes: 0, at: time.Minute, want: ErrInvalidSchedule},
		{name: "index out of range", idx: 9, minutes: 1, at: time.Minute, want: ErrInvalidSchedule},
		{name: "completed session", idx: 3, minutes: 1, at: 2 * time.Hour, want: ErrSessionAlreadyCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s", "", phases, t0)

			_, err := Shorten(s, tt.idx, tt.minutes, t0.Add(tt.at))

			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidSchedule, "InvalidSchedule"},
		{ErrSessionNotFound, "SessionNotFound"},
		{ErrInvalidSessionState, "InvalidSessionState"},
		{ErrPhaseNotSkippable, "PhaseNotSkippable"},
		{ErrPhaseNotShortenable, "PhaseNotShortenable"},
		{ErrSessionAlreadyCompleted, "SessionAlreadyCompleted"},
		{errors.New("boom"), "Internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
