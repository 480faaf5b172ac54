package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/interviewclock/internal/domain"
	"github.com/hperssn/interviewclock/internal/runner"
	"github.com/hperssn/interviewclock/internal/storage"
)

const maxBodyBytes = 64 << 10

type phaseResponse struct {
	Index           int      `json:"index"`
	Phase           string   `json:"phase"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration_minutes"`
	IsSkippable     bool     `json:"is_skippable"`
	IsShortenable   bool     `json:"is_shortenable"`
	Status          string   `json:"status,omitempty"`
	StartMinute     float64  `json:"start_minute"`
	EndMinute       *float64 `json:"end_minute,omitempty"`
}

type scheduleResponse struct {
	TotalDurationMinutes int             `json:"total_duration_minutes"`
	Phases               []phaseResponse `json:"phases"`
	IsCustom             bool            `json:"is_custom"`
}

type progressResponse struct {
	Phase               string  `json:"phase"`
	ElapsedMinutes      float64 `json:"elapsed_minutes"`
	TotalMinutes        float64 `json:"total_minutes"`
	ProgressPercentage  float64 `json:"progress_percentage"`
	IsCompleted         bool    `json:"is_completed"`
	IsSkipped           bool    `json:"is_skipped"`
	PhaseElapsedMinutes float64 `json:"phase_elapsed_minutes"`
	PhaseTotalMinutes   float64 `json:"phase_total_minutes"`
}

type statusResponse struct {
	InterviewID  string           `json:"interview_id"`
	CurrentPhase string           `json:"current_phase"`
	SessionState string           `json:"session_state"`
	Progress     progressResponse `json:"progress"`
}

type sessionResponse struct {
	InterviewID    string           `json:"interview_id"`
	SessionState   string           `json:"session_state"`
	CurrentIndex   int              `json:"current_index"`
	StartedAt      time.Time        `json:"started_at"`
	PausedAt       *time.Time       `json:"paused_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	PausedMinutes  float64          `json:"paused_minutes"`
	ElapsedMinutes float64          `json:"elapsed_minutes"`
	Schedule       scheduleResponse `json:"schedule"`
}

func healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func getDefaultSchedule(w http.ResponseWriter, r *http.Request) {
	phases := domain.DefaultPhases()
	out := scheduleResponse{Phases: make([]phaseResponse, len(phases))}
	for i, p := range phases {
		out.Phases[i] = toPhaseResponse(i, p)
		out.TotalDurationMinutes += p.DurationMinutes
	}
	respondJSON(w, out, http.StatusOK)
}

func startInterview(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phases []domain.Phase `json:"phases"`
		}

		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				writeError(w, r, fmt.Errorf("%w: %s must be %s, got %s",
					domain.ErrInvalidSchedule, typeErr.Field, typeErr.Type, typeErr.Value))
				return
			}
			respondError(w, "invalid request body", "InvalidRequest", http.StatusBadRequest)
			return
		}

		session, err := m.Start(r.Context(), GetUserId(r), req.Phases)
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, struct {
			InterviewID string           `json:"interview_id"`
			Schedule    scheduleResponse `json:"schedule"`
		}{
			InterviewID: session.ID,
			Schedule:    toScheduleResponse(session),
		}, http.StatusCreated)
	}
}

func getInterview(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		session, err := m.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, sessionResponse{
			InterviewID:    session.ID,
			SessionState:   string(session.State),
			CurrentIndex:   session.CurrentIdx,
			StartedAt:      session.StartedAt,
			PausedAt:       session.PausedAt,
			CompletedAt:    session.CompletedAt,
			PausedMinutes:  minutes(session.AccumulatedPaused),
			ElapsedMinutes: minutes(session.Elapsed(m.Now())),
			Schedule:       toScheduleResponse(session),
		}, http.StatusOK)
	}
}

func getStatus(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		live, err := m.Status(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, toStatusResponse(live), http.StatusOK)
	}
}

func pauseInterview(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		session, err := m.Pause(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, acknowledgement(session, "Interview paused"), http.StatusOK)
	}
}

func resumeInterview(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		session, err := m.Resume(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, acknowledgement(session, "Interview resumed"), http.StatusOK)
	}
}

func skipPhase(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		live, err := m.Skip(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, toStatusResponse(live), http.StatusOK)
	}
}

func shortenPhase(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		idx, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			respondError(w, "invalid phase index", "InvalidRequest", http.StatusBadRequest)
			return
		}

		var req struct {
			DurationMinutes int `json:"duration_minutes"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				writeError(w, r, fmt.Errorf("%w: %s must be %s, got %s",
					domain.ErrInvalidSchedule, typeErr.Field, typeErr.Type, typeErr.Value))
				return
			}
			respondError(w, "invalid request body", "InvalidRequest", http.StatusBadRequest)
			return
		}

		session, err := m.Shorten(r.Context(), id, idx, req.DurationMinutes)
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, struct {
			InterviewID          string        `json:"interview_id"`
			TotalDurationMinutes int           `json:"total_duration_minutes"`
			Phase                phaseResponse `json:"phase"`
		}{
			InterviewID:          session.ID,
			TotalDurationMinutes: session.TotalDurationMinutes(),
			Phase:                toRecordResponse(idx, session.Phases[idx]),
		}, http.StatusOK)
	}
}

func getWarnings(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		tw, err := m.Warnings(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, struct {
			InterviewID      string           `json:"interview_id"`
			Phase            string           `json:"phase"`
			ElapsedMinutes   float64          `json:"elapsed_minutes"`
			RemainingMinutes float64          `json:"remaining_minutes"`
			Warnings         []domain.Warning `json:"warnings"`
		}{
			InterviewID:      id,
			Phase:            tw.Phase,
			ElapsedMinutes:   minutes(tw.Elapsed),
			RemainingMinutes: minutes(tw.Remaining),
			Warnings:         tw.Warnings,
		}, http.StatusOK)
	}
}

func getHistory(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since time.Time
		if raw := r.URL.Query().Get("days"); raw != "" {
			days, err := strconv.Atoi(raw)
			if err != nil || days <= 0 {
				respondError(w, "days must be a positive integer", "InvalidRequest", http.StatusBadRequest)
				return
			}
			since = m.Now().AddDate(0, 0, -days)
		}

		records, err := m.History(r.Context(), GetUserId(r), since)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if records == nil {
			records = []storage.InterviewRecord{}
		}

		respondJSON(w, map[string]any{"interviews": records}, http.StatusOK)
	}
}

func getStats(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := m.Stats(r.Context(), GetUserId(r))
		if err != nil {
			writeError(w, r, err)
			return
		}

		respondJSON(w, stats, http.StatusOK)
	}
}

func acknowledgement(s *domain.Session, message string) any {
	return struct {
		InterviewID  string `json:"interview_id"`
		SessionState string `json:"session_state"`
		Message      string `json:"message"`
	}{
		InterviewID:  s.ID,
		SessionState: string(s.State),
		Message:      message,
	}
}

func toStatusResponse(live domain.LiveState) statusResponse {
	return statusResponse{
		InterviewID:  live.SessionID,
		CurrentPhase: live.CurrentPhase,
		SessionState: string(live.State),
		Progress: progressResponse{
			Phase:               live.CurrentPhase,
			ElapsedMinutes:      minutes(live.Elapsed),
			TotalMinutes:        minutes(live.Total),
			ProgressPercentage:  round2(live.Progress * 100),
			IsCompleted:         live.IsCompleted,
			IsSkipped:           live.IsSkipped,
			PhaseElapsedMinutes: minutes(live.PhaseElapsed),
			PhaseTotalMinutes:   minutes(live.PhaseTotal),
		},
	}
}

func toScheduleResponse(s *domain.Session) scheduleResponse {
	out := scheduleResponse{
		TotalDurationMinutes: s.TotalDurationMinutes(),
		Phases:               make([]phaseResponse, len(s.Phases)),
		IsCustom:             s.IsCustom,
	}
	for i, rec := range s.Phases {
		out.Phases[i] = toRecordResponse(i, rec)
	}
	return out
}

func toRecordResponse(i int, rec domain.PhaseRecord) phaseResponse {
	out := toPhaseResponse(i, rec.Phase)
	out.Status = string(rec.Status)
	out.StartMinute = minutes(rec.StartOffset)
	if rec.CompletedAtOffset != nil {
		end := minutes(*rec.CompletedAtOffset)
		out.EndMinute = &end
	}
	return out
}

func toPhaseResponse(i int, p domain.Phase) phaseResponse {
	return phaseResponse{
		Index:           i,
		Phase:           p.Name,
		Description:     p.Description,
		DurationMinutes: p.DurationMinutes,
		IsSkippable:     p.IsSkippable,
		IsShortenable:   p.IsShortenable,
	}
}

func minutes(d time.Duration) float64 {
	return round2(d.Minutes())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidSchedule):
		return http.StatusBadRequest, domain.Kind(err)
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, domain.Kind(err)
	case errors.Is(err, domain.ErrInvalidSessionState),
		errors.Is(err, domain.ErrPhaseNotSkippable),
		errors.Is(err, domain.ErrPhaseNotShortenable),
		errors.Is(err, domain.ErrSessionAlreadyCompleted):
		return http.StatusConflict, domain.Kind(err)
	case errors.Is(err, storage.ErrSessionExists):
		return http.StatusConflict, "SessionExists"
	case errors.Is(err, storage.ErrLockTimeout):
		return http.StatusServiceUnavailable, "LockTimeout"
	case errors.Is(err, runner.ErrHistoryDisabled):
		return http.StatusNotImplemented, "HistoryDisabled"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	respondError(w, message, kind, status)
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, message, kind string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": kind})
}
