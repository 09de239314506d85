package events

import "time"

// Source identifies who produced an event.
type Source string

const (
	SourceUser        Source = "user"
	SourceAgent       Source = "agent"
	SourceEnvironment Source = "environment"
)

// Action is a typed request for an effect. The variant set is closed:
// consumers dispatch with an exhaustive type switch so that adding a
// variant forces review of every call site.
type Action interface {
	isAction()
	// Message is a short human-readable description used for logging
	// and the live event feed.
	Message() string
}

// Observation is the typed result of an Action or of environment
// activity. Closed variant set, same rules as Action.
type Observation interface {
	isObservation()
	Message() string
}

// Record is one entry in a session's History: either an action taken
// or an observation received, never both. Sequence ids are assigned
// by History at append time and are unique and strictly increasing
// within a session. Cause holds the sequence id of the action that
// produced an observation, or 0.
type Record struct {
	Seq         int64       `json:"seq"`
	Source      Source      `json:"source"`
	Cause       int64       `json:"cause,omitempty"`
	At          time.Time   `json:"at"`
	Action      Action      `json:"-"`
	Observation Observation `json:"-"`
}

// IsAction reports whether the record holds an action.
func (r Record) IsAction() bool { return r.Action != nil }

// Executable reports whether an action is dispatched to an external
// collaborator (sandbox, browser, delegate). Plan edits, messages and
// finish are handled by the controller itself.
func Executable(a Action) bool {
	switch a.(type) {
	case RunCommand, RunCodeCell, DelegateToAgent:
		return true
	default:
		return false
	}
}
