package domain

import "errors"

var (
	ErrInvalidSchedule         = errors.New("invalid schedule")
	ErrSessionNotFound         = errors.New("session not found")
	ErrInvalidSessionState     = errors.New("invalid session state")
	ErrPhaseNotSkippable       = errors.New("phase not skippable")
	ErrPhaseNotShortenable     = errors.New("phase not shortenable")
	ErrSessionAlreadyCompleted = errors.New("session already completed")
)

// Kind names the error category reported to clients.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSchedule):
		return "InvalidSchedule"
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrInvalidSessionState):
		return "InvalidSessionState"
	case errors.Is(err, ErrPhaseNotSkippable):
		return "PhaseNotSkippable"
	case errors.Is(err, ErrPhaseNotShortenable):
		return "PhaseNotShortenable"
	case errors.Is(err, ErrSessionAlreadyCompleted):
		return "SessionAlreadyCompleted"
	default:
		return "Internal"
	}
}
