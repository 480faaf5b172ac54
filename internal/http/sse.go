package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/interviewclock/internal/runner"
)

func StreamSessionEvents(manager *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		flusher, ok := w.(http.Flusher)
		if !ok {
			respondError(w, "streaming unsupported", "Internal", http.StatusInternalServerError)
			return
		}

		events, cancel, err := manager.Subscribe(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if live, err := manager.Status(r.Context(), id); err == nil {
			writeEvent(w, "status", toStatusResponse(live))
		}
		flusher.Flush()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}

				writeEvent(w, string(event.Type), event)
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
