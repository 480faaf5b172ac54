package httpapi

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hperssn/interviewclock/internal/domain"
	"github.com/hperssn/interviewclock/internal/runner"
)

const (
	wsWriteWait       = 5 * time.Second
	maxWSMessageBytes = 1 << 10
)

type wsMessage struct {
	Type   string          `json:"type"`
	Status *statusResponse `json:"status,omitempty"`
	Event  *domain.Event   `json:"event,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StreamSessionStatus pushes a status snapshot every interval and forwards
// transition events as they happen. The socket is closed once the interview
// completes.
func StreamSessionStatus(manager *runner.SessionManager, interval time.Duration, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return isWebSocketOriginAllowed(r, allowedOrigins)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		events, cancel, err := manager.Subscribe(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer cancel()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.WarnContext(r.Context(), "status ws upgrade failed", "interview_id", id, "error", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxWSMessageBytes)

		// Clients only send control frames; reading surfaces the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		send := func(msg wsMessage) bool {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteJSON(msg) == nil
		}

		// Reading the status can itself apply due transitions; their events
		// go out ahead of the snapshot.
		flushEvents := func() bool {
			for {
				select {
				case event, ok := <-events:
					if !ok {
						return false
					}
					if !send(wsMessage{Type: "event", Event: &event}) {
						return false
					}
				default:
					return true
				}
			}
		}

		pushStatus := func() (done bool) {
			live, err := manager.Status(r.Context(), id)
			if err != nil {
				send(wsMessage{Type: "error", Error: err.Error()})
				return true
			}
			if !flushEvents() {
				return true
			}
			status := toStatusResponse(live)
			if !send(wsMessage{Type: "status", Status: &status}) {
				return true
			}
			return live.IsCompleted
		}

		if pushStatus() {
			closeNormally(conn)
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if pushStatus() {
					closeNormally(conn)
					return
				}
			case event, ok := <-events:
				if !ok {
					return
				}
				if !send(wsMessage{Type: "event", Event: &event}) {
					return
				}
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interview completed")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

func isWebSocketOriginAllowed(r *http.Request, allowed []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if slices.Contains(allowed, origin) || slices.Contains(allowed, "*") {
		return true
	}
	parsedOrigin, err := url.Parse(origin)
	if err != nil || strings.TrimSpace(parsedOrigin.Host) == "" {
		return false
	}
	return strings.EqualFold(parsedOrigin.Host, r.Host)
}
