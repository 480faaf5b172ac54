package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	MaxPhases       = 50
	MaxPhaseMinutes = 480
)

// DefaultPhases is the standard 75 minute interview template.
func DefaultPhases() []Phase {
	return []Phase{
		{Name: "introduction", Description: "Introduction and rapport building", DurationMinutes: 5, IsShortenable: true},
		{Name: "behavioral", Description: "Behavioral questions and past experience", DurationMinutes: 15, IsShortenable: true},
		{Name: "technical", Description: "Technical knowledge assessment", DurationMinutes: 20, IsShortenable: true},
		{Name: "coding", Description: "Coding problem solving", DurationMinutes: 30, IsShortenable: true},
		{Name: "closing", Description: "Closing remarks and questions", DurationMinutes: 5, IsShortenable: true},
	}
}

// NormalizePhases validates client phases and returns a trimmed copy with
// descriptions filled in.
func NormalizePhases(phases []Phase) ([]Phase, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("%w: phases must not be empty", ErrInvalidSchedule)
	}
	if len(phases) > MaxPhases {
		return nil, fmt.Errorf("%w: phases must have at most %d entries", ErrInvalidSchedule, MaxPhases)
	}

	out := make([]Phase, len(phases))
	for i, p := range phases {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("%w: phases[%d].phase must not be empty", ErrInvalidSchedule, i)
		}
		if p.DurationMinutes < 1 {
			return nil, fmt.Errorf("%w: phases[%d].duration_minutes must be >= 1, got %d", ErrInvalidSchedule, i, p.DurationMinutes)
		}
		if p.DurationMinutes > MaxPhaseMinutes {
			return nil, fmt.Errorf("%w: phases[%d].duration_minutes must be <= %d, got %d", ErrInvalidSchedule, i, MaxPhaseMinutes, p.DurationMinutes)
		}
		p.Description = strings.TrimSpace(p.Description)
		if p.Description == "" {
			p.Description = p.Name + " phase"
		}
		out[i] = p
	}
	return out, nil
}

// BuildSession turns a client phase list into a running session.
func BuildSession(id, ownerID string, phases []Phase, now time.Time) (*Session, error) {
	normalized, err := NormalizePhases(phases)
	if err != nil {
		return nil, err
	}

	s := NewSession(id, ownerID, normalized, now)
	s.IsCustom = !samePhases(normalized, DefaultPhases())
	return s, nil
}

func samePhases(a, b []Phase) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].DurationMinutes != b[i].DurationMinutes {
			return false
		}
	}
	return true
}
