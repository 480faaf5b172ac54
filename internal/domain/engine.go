package domain

import "time"

type TransitionType string

const (
	TransitionPhaseCompleted   TransitionType = "phase_completed"
	TransitionPhaseSkipped     TransitionType = "phase_skipped"
	TransitionPhaseShortened   TransitionType = "phase_shortened"
	TransitionSessionPaused    TransitionType = "session_paused"
	TransitionSessionResumed   TransitionType = "session_resumed"
	TransitionSessionCompleted TransitionType = "session_completed"
)

// Transition describes one state change applied to a session.
type Transition struct {
	Type       TransitionType `json:"type"`
	PhaseIndex int            `json:"phase_index"`
	Phase      string         `json:"phase"`
	Offset     time.Duration  `json:"offset"`
	Impact     *TimeImpact    `json:"time_impact,omitempty"`
}

// TimeImpact compares a finished phase's planned and actual duration.
type TimeImpact struct {
	ExpectedMinutes   float64 `json:"expected_minutes"`
	ActualMinutes     float64 `json:"actual_minutes"`
	DifferenceMinutes float64 `json:"difference_minutes"`
	IsOverTime        bool    `json:"is_over_time"`
}

func impactOf(r PhaseRecord) *TimeImpact {
	if r.CompletedAtOffset == nil {
		return nil
	}
	expected := r.Phase.Duration().Minutes()
	actual := (*r.CompletedAtOffset - r.StartOffset).Minutes()
	return &TimeImpact{
		ExpectedMinutes:   expected,
		ActualMinutes:     actual,
		DifferenceMinutes: actual - expected,
		IsOverTime:        actual > expected,
	}
}

type PhaseSummary struct {
	Index           int
	Name            string
	Status          PhaseStatus
	DurationMinutes int
	StartOffset     time.Duration
	EndOffset       *time.Duration
}

// LiveState is the point-in-time view of a session. It is never stored.
type LiveState struct {
	SessionID    string
	State        SessionState
	CurrentIndex int
	CurrentPhase string
	Elapsed      time.Duration
	PhaseElapsed time.Duration
	PhaseTotal   time.Duration
	Total        time.Duration
	// Progress is the current phase's completed fraction in [0,1].
	Progress    float64
	IsCompleted bool
	IsSkipped   bool
	Phases      []PhaseSummary
}

// Advance applies every time-driven transition due at now: each phase whose
// planned end has been reached is completed and the next one activated. The
// session completes when the last phase runs out.
func Advance(s *Session, now time.Time) []Transition {
	if s.State == StateCompleted {
		return nil
	}

	elapsed := s.Elapsed(now)
	var out []Transition
	for s.CurrentIdx < len(s.Phases) {
		rec := &s.Phases[s.CurrentIdx]
		end := rec.PlannedEnd()
		if elapsed < end {
			break
		}

		rec.finish(PhaseCompleted, end)
		out = append(out, Transition{
			Type:       TransitionPhaseCompleted,
			PhaseIndex: s.CurrentIdx,
			Phase:      rec.Phase.Name,
			Offset:     end,
			Impact:     impactOf(*rec),
		})

		if !activateNext(s, end) {
			out = append(out, completionOf(s))
			break
		}
	}
	return out
}

// activateNext moves to the phase after the current one, starting it at the
// given offset. It completes the session and returns false when there is none.
func activateNext(s *Session, at time.Duration) bool {
	if s.CurrentIdx >= len(s.Phases)-1 {
		s.CurrentIdx = len(s.Phases) - 1
		s.complete(at)
		return false
	}

	s.CurrentIdx++
	next := &s.Phases[s.CurrentIdx]
	next.Status = PhaseActive
	next.StartOffset = at
	return true
}

func completionOf(s *Session) Transition {
	last := s.Phases[len(s.Phases)-1]
	return Transition{
		Type:       TransitionSessionCompleted,
		PhaseIndex: len(s.Phases) - 1,
		Phase:      last.Phase.Name,
		Offset:     s.FinalElapsed,
	}
}

// ComputeLiveState derives the session's live view at now without mutating s.
func ComputeLiveState(s *Session, now time.Time) LiveState {
	view := s.Clone()
	Advance(view, now)

	elapsed := view.Elapsed(now)
	state := LiveState{
		SessionID:    view.ID,
		State:        view.State,
		CurrentIndex: view.CurrentIdx,
		Elapsed:      elapsed,
		Total:        time.Duration(view.TotalDurationMinutes()) * time.Minute,
		IsCompleted:  view.State == StateCompleted,
		Phases:       summarize(view),
	}

	if cur := view.Current(); cur != nil {
		state.CurrentPhase = cur.Phase.Name
		state.PhaseTotal = cur.Phase.Duration()
		state.PhaseElapsed = phaseElapsed(*cur, elapsed)
		state.IsSkipped = cur.Status == PhaseSkipped
		state.Progress = clamp01(state.PhaseElapsed.Seconds() / state.PhaseTotal.Seconds())
	}
	return state
}

func phaseElapsed(r PhaseRecord, elapsed time.Duration) time.Duration {
	if r.CompletedAtOffset != nil {
		elapsed = *r.CompletedAtOffset
	}
	d := elapsed - r.StartOffset
	if d < 0 {
		return 0
	}
	return d
}

func summarize(s *Session) []PhaseSummary {
	out := make([]PhaseSummary, len(s.Phases))
	for i, r := range s.Phases {
		out[i] = PhaseSummary{
			Index:           i,
			Name:            r.Phase.Name,
			Status:          r.Status,
			DurationMinutes: r.Phase.DurationMinutes,
			StartOffset:     r.StartOffset,
			EndOffset:       r.CompletedAtOffset,
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
