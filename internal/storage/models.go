package storage

import (
	"time"

	"github.com/hperssn/interviewclock/internal/domain"
)

type Outcome string

const (
	OutcomeFull    Outcome = "full"
	OutcomePartial Outcome = "partial"
	OutcomeSkipped Outcome = "skipped"
)

// InterviewRecord is the archived summary of a completed interview.
type InterviewRecord struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	PlannedMinutes int           `json:"planned_minutes"`
	ActualSec      int           `json:"actual_sec"`
	Outcome        Outcome       `json:"outcome"`
	IsCustom       bool          `json:"is_custom"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    time.Time     `json:"completed_at"`
	Phases         []PhaseResult `json:"phases"`
}

type PhaseResult struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	PlannedMinutes int    `json:"planned_minutes"`
	ActualSec      int    `json:"actual_sec"` // less than planned when skipped
	Status         string `json:"status"`
}

// FromDomainSession converts a completed domain.Session to an InterviewRecord
func FromDomainSession(s *domain.Session) *InterviewRecord {
	phases := make([]PhaseResult, len(s.Phases))
	skipped := 0
	for i, rec := range s.Phases {
		actualSec := 0
		if rec.CompletedAtOffset != nil {
			actualSec = int((*rec.CompletedAtOffset - rec.StartOffset).Seconds())
		}
		if rec.Status == domain.PhaseSkipped {
			skipped++
		}

		phases[i] = PhaseResult{
			Index:          i,
			Name:           rec.Phase.Name,
			PlannedMinutes: rec.Phase.DurationMinutes,
			ActualSec:      actualSec,
			Status:         string(rec.Status),
		}
	}

	outcome := OutcomeFull
	switch {
	case skipped == len(s.Phases):
		outcome = OutcomeSkipped
	case skipped > 0:
		outcome = OutcomePartial
	}

	completedAt := time.Now().UTC()
	if s.CompletedAt != nil {
		completedAt = *s.CompletedAt
	}

	return &InterviewRecord{
		ID:             s.ID,
		UserID:         s.OwnerID,
		PlannedMinutes: s.TotalDurationMinutes(),
		ActualSec:      int(s.FinalElapsed.Seconds()),
		Outcome:        outcome,
		IsCustom:       s.IsCustom,
		StartedAt:      s.StartedAt,
		CompletedAt:    completedAt,
		Phases:         phases,
	}
}
