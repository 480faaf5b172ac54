package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/interviewclock/internal/domain"
	"github.com/hperssn/interviewclock/internal/runner"
)

type contextKey string

const UserIDKey contextKey = "userId"

const devUser = "dev-user"

// ExtractUserMiddleware reads the user id set by the auth proxy in front of
// the service. Without one, requests are rejected unless allowDev is set.
func ExtractUserMiddleware(allowDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Traefik BasicAuth sets this header
			userId := r.Header.Get("X-Auth-User")

			// Also check common alternatives
			if userId == "" {
				userId = r.Header.Get("X-Forwarded-User")
			}
			if userId == "" {
				userId = r.Header.Get("Remote-User")
			}

			if userId == "" && allowDev {
				userId = devUser
				slog.DebugContext(r.Context(), "no auth header, using dev user")
			}

			if userId == "" {
				slog.WarnContext(r.Context(), "authentication failed: no user header found", "path", r.URL.Path)
				respondError(w, "unauthorized", "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userId)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserId(r *http.Request) string {
	userId, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userId
}

// RequireSessionOwner answers 404 for interviews started by another user.
func RequireSessionOwner(m *runner.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")

			owner, err := m.Owner(r.Context(), id)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if owner != "" && owner != GetUserId(r) {
				slog.WarnContext(r.Context(), "interview owned by another user",
					"interview_id", id, "user_id", GetUserId(r))
				writeError(w, r, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
