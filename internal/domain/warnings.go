package domain

import (
	"fmt"
	"time"
)

type WarningLevel string

const (
	WarningInfo    WarningLevel = "info"
	WarningWarning WarningLevel = "warning"
)

type Warning struct {
	Level   WarningLevel `json:"level"`
	Message string       `json:"message"`
}

type TimeWarnings struct {
	Phase     string
	Elapsed   time.Duration
	Remaining time.Duration
	Warnings  []Warning
}

// ComputeWarnings reports how close the current phase is to running out.
func ComputeWarnings(s *Session, now time.Time) TimeWarnings {
	view := s.Clone()
	Advance(view, now)

	cur := view.Current()
	if view.State == StateCompleted || cur == nil {
		return TimeWarnings{Warnings: []Warning{}}
	}

	elapsed := view.Elapsed(now)
	remaining := cur.PlannedEnd() - elapsed
	out := TimeWarnings{
		Phase:     cur.Phase.Name,
		Elapsed:   phaseElapsed(*cur, elapsed),
		Remaining: remaining,
		Warnings:  []Warning{},
	}

	switch {
	case remaining < time.Minute:
		out.Warnings = append(out.Warnings, Warning{
			Level:   WarningWarning,
			Message: "Less than 1 minute remaining in current phase",
		})
	case remaining < 5*time.Minute:
		out.Warnings = append(out.Warnings, Warning{
			Level:   WarningInfo,
			Message: fmt.Sprintf("%.1f minutes remaining in current phase", remaining.Minutes()),
		})
	}
	return out
}
