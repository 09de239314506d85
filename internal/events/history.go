package events

import "time"

// History is the append-only ordered event log for one session. It is
// owned and mutated exclusively by the session controller; every other
// component only reads it. Truncating history for the LLM context is a
// view operation elsewhere and never touches the log itself.
type History struct {
	records []Record
	nextSeq int64
	chars   int64
}

func NewHistory() *History {
	return &History{nextSeq: 1}
}

// AppendAction records an action and returns its sequence id.
func (h *History) AppendAction(a Action, source Source) int64 {
	rec := Record{
		Seq:    h.nextSeq,
		Source: source,
		At:     time.Now().UTC(),
		Action: a,
	}
	h.nextSeq++
	h.records = append(h.records, rec)
	h.chars += int64(len(actionText(a)))
	return rec.Seq
}

// AppendObservation records an observation caused by the action with
// sequence id cause (0 when nothing caused it).
func (h *History) AppendObservation(o Observation, cause int64) int64 {
	rec := Record{
		Seq:         h.nextSeq,
		Source:      SourceEnvironment,
		Cause:       cause,
		At:          time.Now().UTC(),
		Observation: o,
	}
	h.nextSeq++
	h.records = append(h.records, rec)
	h.chars += int64(len(observationText(o)))
	return rec.Seq
}

func (h *History) Len() int { return len(h.records) }

// Chars is the cumulative character count of all recorded content,
// used by the controller's hard budget circuit breaker.
func (h *History) Chars() int64 { return h.chars }

// Records returns a copy of the log in append order.
func (h *History) Records() []Record {
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Walk iterates the log in append order until fn returns false.
func (h *History) Walk(fn func(Record) bool) {
	for _, rec := range h.records {
		if !fn(rec) {
			return
		}
	}
}

// WalkBack iterates the log newest-first until fn returns false.
func (h *History) WalkBack(fn func(Record) bool) {
	for i := len(h.records) - 1; i >= 0; i-- {
		if !fn(h.records[i]) {
			return
		}
	}
}

// LastUserMessage returns the content of the most recent SendMessage
// from the user, or "" when there is none.
func (h *History) LastUserMessage() string {
	var content string
	h.WalkBack(func(rec Record) bool {
		msg, ok := rec.Action.(SendMessage)
		if ok && rec.Source == SourceUser {
			content = msg.Content
			return false
		}
		return true
	})
	return content
}

// LastObservation returns the most recent observation, or nil.
func (h *History) LastObservation() Observation {
	var obs Observation
	h.WalkBack(func(rec Record) bool {
		if rec.Observation != nil {
			obs = rec.Observation
			return false
		}
		return true
	})
	return obs
}

func actionText(a Action) string {
	switch v := a.(type) {
	case RunCommand:
		return v.Thought + v.Command
	case RunCodeCell:
		return v.Thought + v.Code
	case DelegateToAgent:
		return v.Thought + v.Task
	case SendMessage:
		return v.Content
	case FinishTask:
		return v.Thought
	case AddTask:
		return v.Thought + v.Goal
	case ModifyTask:
		return v.Thought
	case NullAction:
		return ""
	}
	return ""
}

func observationText(o Observation) string {
	switch v := o.(type) {
	case CommandOutput:
		return v.Content
	case CodeCellOutput:
		return v.Content
	case DelegateOutput:
		return v.Content
	case BrowserOutput:
		return v.Content
	case ErrorObservation:
		return v.Content
	case NullObservation:
		return ""
	}
	return ""
}
