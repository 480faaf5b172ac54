package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	StateRunning   SessionState = "running"
	StatePaused    SessionState = "paused"
	StateCompleted SessionState = "completed"
)

type Session struct {
	ID                string        `json:"id"`
	OwnerID           string        `json:"owner_id,omitempty"`
	IsCustom          bool          `json:"is_custom"`
	Phases            []PhaseRecord `json:"phases"`
	CurrentIdx        int           `json:"current_index"`
	State             SessionState  `json:"state"`
	StartedAt         time.Time     `json:"started_at"`
	PausedAt          *time.Time    `json:"paused_at,omitempty"`
	AccumulatedPaused time.Duration `json:"accumulated_paused"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	FinalElapsed      time.Duration `json:"final_elapsed"`
}

// NewSession starts a session over already validated phases. Use BuildSession
// for client input.
func NewSession(id string, ownerID string, phases []Phase, now time.Time) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	records := make([]PhaseRecord, len(phases))
	for i, p := range phases {
		records[i] = PhaseRecord{
			Phase:  p,
			Status: PhasePending,
		}
	}
	if len(records) > 0 {
		records[0].Status = PhaseActive
	}

	return &Session{
		ID:         id,
		OwnerID:    ownerID,
		Phases:     records,
		CurrentIdx: 0,
		State:      StateRunning,
		StartedAt:  now,
	}
}

// Elapsed is the live session time at now: wall time since start minus every
// paused interval. It is frozen while paused and after completion.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.State == StateCompleted {
		return s.FinalElapsed
	}

	elapsed := now.Sub(s.StartedAt) - s.AccumulatedPaused
	if s.PausedAt != nil {
		elapsed -= now.Sub(*s.PausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (s *Session) TotalDurationMinutes() int {
	total := 0
	for _, r := range s.Phases {
		total += r.Phase.DurationMinutes
	}
	return total
}

func (s *Session) Current() *PhaseRecord {
	if s.CurrentIdx < 0 || s.CurrentIdx >= len(s.Phases) {
		return nil
	}
	return &s.Phases[s.CurrentIdx]
}

func (s *Session) Completed() bool {
	return s.State == StateCompleted
}

// Clone returns a deep copy; stores and the engine never share pointers.
func (s *Session) Clone() *Session {
	out := *s
	out.Phases = make([]PhaseRecord, len(s.Phases))
	for i, r := range s.Phases {
		out.Phases[i] = r
		if r.CompletedAtOffset != nil {
			at := *r.CompletedAtOffset
			out.Phases[i].CompletedAtOffset = &at
		}
	}
	if s.PausedAt != nil {
		t := *s.PausedAt
		out.PausedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func (s *Session) complete(final time.Duration) {
	s.State = StateCompleted
	s.FinalElapsed = final
	s.PausedAt = nil
	at := s.StartedAt.Add(s.AccumulatedPaused + final)
	s.CompletedAt = &at
}
