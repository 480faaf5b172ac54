package domain

import (
	"fmt"
	"time"
)

// The operations below first apply due time-driven transitions, then their own
// effect. They mutate s in place; callers working on stored sessions must pass
// a clone and discard it when an error is returned.

func Pause(s *Session, now time.Time) ([]Transition, error) {
	out := Advance(s, now)
	if s.State != StateRunning {
		return out, fmt.Errorf("%w: cannot pause a %s session", ErrInvalidSessionState, s.State)
	}

	t := now
	s.PausedAt = &t
	s.State = StatePaused
	return append(out, Transition{
		Type:       TransitionSessionPaused,
		PhaseIndex: s.CurrentIdx,
		Phase:      s.Phases[s.CurrentIdx].Phase.Name,
		Offset:     s.Elapsed(now),
	}), nil
}

func Resume(s *Session, now time.Time) ([]Transition, error) {
	out := Advance(s, now)
	if s.State != StatePaused {
		return out, fmt.Errorf("%w: cannot resume a %s session", ErrInvalidSessionState, s.State)
	}

	gap := now.Sub(*s.PausedAt)
	if gap > 0 {
		s.AccumulatedPaused += gap
	}
	s.PausedAt = nil
	s.State = StateRunning
	return append(out, Transition{
		Type:       TransitionSessionResumed,
		PhaseIndex: s.CurrentIdx,
		Phase:      s.Phases[s.CurrentIdx].Phase.Name,
		Offset:     s.Elapsed(now),
	}), nil
}

// Skip ends the current phase at the current elapsed time. The next phase
// starts immediately, so the skipped phase's unused time is not carried over.
func Skip(s *Session, now time.Time) ([]Transition, error) {
	out := Advance(s, now)
	if s.State == StateCompleted {
		return out, ErrSessionAlreadyCompleted
	}

	rec := &s.Phases[s.CurrentIdx]
	if !rec.Phase.IsSkippable {
		return out, fmt.Errorf("%w: phase %d (%s)", ErrPhaseNotSkippable, s.CurrentIdx, rec.Phase.Name)
	}

	at := s.Elapsed(now)
	rec.finish(PhaseSkipped, at)
	out = append(out, Transition{
		Type:       TransitionPhaseSkipped,
		PhaseIndex: s.CurrentIdx,
		Phase:      rec.Phase.Name,
		Offset:     at,
		Impact:     impactOf(*rec),
	})

	if !activateNext(s, at) {
		out = append(out, completionOf(s))
	}
	return out, nil
}

// Shorten reduces the planned duration of a phase that has not started yet.
func Shorten(s *Session, idx, minutes int, now time.Time) ([]Transition, error) {
	out := Advance(s, now)
	if s.State == StateCompleted {
		return out, ErrSessionAlreadyCompleted
	}
	if idx < 0 || idx >= len(s.Phases) {
		return out, fmt.Errorf("%w: phase index %d out of range", ErrInvalidSchedule, idx)
	}

	rec := &s.Phases[idx]
	if rec.Status != PhasePending {
		return out, fmt.Errorf("%w: phase %d (%s) is %s", ErrPhaseNotShortenable, idx, rec.Phase.Name, rec.Status)
	}
	if !rec.Phase.IsShortenable {
		return out, fmt.Errorf("%w: phase %d (%s)", ErrPhaseNotShortenable, idx, rec.Phase.Name)
	}
	if minutes < 1 || minutes >= rec.Phase.DurationMinutes {
		return out, fmt.Errorf("%w: duration_minutes must be between 1 and %d, got %d", ErrInvalidSchedule, rec.Phase.DurationMinutes-1, minutes)
	}

	rec.Phase.DurationMinutes = minutes
	return append(out, Transition{
		Type:       TransitionPhaseShortened,
		PhaseIndex: idx,
		Phase:      rec.Phase.Name,
		Offset:     s.Elapsed(now),
	}), nil
}
