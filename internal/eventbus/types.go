package eventbus

import "time"

// Streams carried by the bus. Actions and observations mirror the
// session history; state carries controller lifecycle transitions.
const (
	StreamActions      = "actions"
	StreamObservations = "observations"
	StreamState        = "state"
)

type Event struct {
	ID        string         `json:"id"`
	Stream    string         `json:"stream"`
	SessionID string         `json:"session_id"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type EventInput struct {
	Stream    string
	SessionID string
	Subject   string
	Body      string
	Payload   map[string]any
}

type ListOptions struct {
	SessionID string
	Limit     int
	Order     string
}
