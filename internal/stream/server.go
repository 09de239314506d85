// Package stream serves a read-only live feed of session events: a
// WebSocket stream backed by the event bus plus small JSON endpoints
// for session and event listings.
package stream

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/driftworks/agentd/internal/eventbus"
	"github.com/driftworks/agentd/internal/state"
)

type Server struct {
	Bus       *eventbus.Bus
	Store     *state.Store
	StartedAt time.Time
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/streams/ws", s.handleStreamWS)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"started": s.StartedAt,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Store == nil {
		writeError(w, http.StatusInternalServerError, "no session store")
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	sessions, err := s.Store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type summary struct {
		ID        string    `json:"id"`
		Agent     string    `json:"agent"`
		Task      string    `json:"task"`
		State     string    `json:"state"`
		Iteration int       `json:"iteration"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	out := make([]summary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summary{
			ID:        sess.ID,
			Agent:     sess.Agent,
			Task:      sess.Task,
			State:     sess.State,
			Iteration: sess.Iteration,
			UpdatedAt: sess.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Bus == nil {
		writeError(w, http.StatusInternalServerError, "no event bus")
		return
	}
	streamName := r.URL.Query().Get("stream")
	if streamName == "" {
		streamName = eventbus.StreamActions
	}
	events, err := s.Bus.List(r.Context(), streamName, eventbus.ListOptions{
		SessionID: r.URL.Query().Get("session"),
		Limit:     parseInt(r.URL.Query().Get("limit"), 50),
		Order:     r.URL.Query().Get("order"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseInt(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitComma(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
