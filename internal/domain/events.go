package domain

import "time"

// Event is a transition stamped with the session it belongs to. It is what
// subscribers and webhooks receive.
type Event struct {
	Type         TransitionType `json:"type"`
	InterviewID  string         `json:"interview_id"`
	Phase        string         `json:"phase"`
	PhaseIndex   int            `json:"phase_index"`
	OccurredAt   time.Time      `json:"occurred_at"`
	SessionState SessionState   `json:"session_state"`
	TimeImpact   *TimeImpact    `json:"time_impact,omitempty"`
}

// EventsOf converts transitions applied to s at now into events. Transitions
// that became due before now are stamped with the instant they fell due.
func EventsOf(s *Session, transitions []Transition, now time.Time) []Event {
	events := make([]Event, 0, len(transitions))
	for _, t := range transitions {
		at := s.StartedAt.Add(s.AccumulatedPaused + t.Offset)
		if at.After(now) {
			at = now
		}
		events = append(events, Event{
			Type:         t.Type,
			InterviewID:  s.ID,
			Phase:        t.Phase,
			PhaseIndex:   t.PhaseIndex,
			OccurredAt:   at,
			SessionState: s.State,
			TimeImpact:   t.Impact,
		})
	}
	return events
}
