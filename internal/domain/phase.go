package domain

import "time"

type Phase struct {
	Name            string `json:"phase"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	IsSkippable     bool   `json:"is_skippable"`
	IsShortenable   bool   `json:"is_shortenable"`
}

func (p Phase) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

type PhaseStatus string

const (
	PhasePending   PhaseStatus = "pending"
	PhaseActive    PhaseStatus = "active"
	PhaseCompleted PhaseStatus = "completed"
	PhaseSkipped   PhaseStatus = "skipped"
)

func (s PhaseStatus) Terminal() bool {
	return s == PhaseCompleted || s == PhaseSkipped
}

// PhaseRecord tracks one phase within a running session. Offsets are measured
// in session-elapsed time, so pauses never move them.
type PhaseRecord struct {
	Phase             Phase          `json:"phase"`
	Status            PhaseStatus    `json:"status"`
	StartOffset       time.Duration  `json:"start_offset"`
	CompletedAtOffset *time.Duration `json:"completed_at_offset,omitempty"`
}

// PlannedEnd is the session-elapsed time at which the phase runs out.
func (r PhaseRecord) PlannedEnd() time.Duration {
	return r.StartOffset + r.Phase.Duration()
}

func (r *PhaseRecord) finish(status PhaseStatus, at time.Duration) {
	r.Status = status
	if r.CompletedAtOffset == nil {
		r.CompletedAtOffset = &at
	}
}
