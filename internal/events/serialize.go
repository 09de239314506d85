package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags used in the persisted form of a record.
const (
	KindRunCommand      = "run_command"
	KindRunCodeCell     = "run_code_cell"
	KindDelegate        = "delegate"
	KindSendMessage     = "message"
	KindFinishTask      = "finish"
	KindAddTask         = "add_task"
	KindModifyTask      = "modify_task"
	KindNullAction      = "null_action"
	KindCommandOutput   = "command_output"
	KindCodeCellOutput  = "code_cell_output"
	KindDelegateOutput  = "delegate_output"
	KindBrowserOutput   = "browser_output"
	KindError           = "error"
	KindNullObservation = "null_observation"
)

type envelope struct {
	Seq    int64           `json:"seq"`
	Source Source          `json:"source"`
	Cause  int64           `json:"cause,omitempty"`
	At     time.Time       `json:"at"`
	Kind   string          `json:"kind"`
	Data   json.RawMessage `json:"data"`
}

// Kind returns the persisted type tag for a record's payload.
func (r Record) Kind() string {
	switch r.Action.(type) {
	case RunCommand:
		return KindRunCommand
	case RunCodeCell:
		return KindRunCodeCell
	case DelegateToAgent:
		return KindDelegate
	case SendMessage:
		return KindSendMessage
	case FinishTask:
		return KindFinishTask
	case AddTask:
		return KindAddTask
	case ModifyTask:
		return KindModifyTask
	case NullAction:
		return KindNullAction
	}
	switch r.Observation.(type) {
	case CommandOutput:
		return KindCommandOutput
	case CodeCellOutput:
		return KindCodeCellOutput
	case DelegateOutput:
		return KindDelegateOutput
	case BrowserOutput:
		return KindBrowserOutput
	case ErrorObservation:
		return KindError
	case NullObservation:
		return KindNullObservation
	}
	return ""
}

// MarshalRecord encodes a record with a type tag so it can round-trip
// through the session store and the event bus.
func MarshalRecord(r Record) ([]byte, error) {
	kind := r.Kind()
	if kind == "" {
		return nil, fmt.Errorf("record %d has no payload", r.Seq)
	}
	var payload any
	if r.Action != nil {
		payload = r.Action
	} else {
		payload = r.Observation
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return json.Marshal(envelope{
		Seq:    r.Seq,
		Source: r.Source,
		Cause:  r.Cause,
		At:     r.At,
		Kind:   kind,
		Data:   data,
	})
}

// UnmarshalRecord decodes a record produced by MarshalRecord.
func UnmarshalRecord(data []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	rec := Record{Seq: env.Seq, Source: env.Source, Cause: env.Cause, At: env.At}

	decode := func(v any) error {
		if len(env.Data) == 0 {
			return nil
		}
		return json.Unmarshal(env.Data, v)
	}

	switch env.Kind {
	case KindRunCommand:
		var a RunCommand
		if err := decode(&a); err != nil {
			return Record{}, err
		}
		rec.Action = a
	case KindRunCodeCell:
		var a RunCodeCell
		if err := decode(&a); err != nil {
			return Record{}, err
		}
		rec.Action = a
	case KindDelegate:
		var a DelegateToAgent
		if err := decode(&a); err != nil {
			return Record{}, err
		}
		rec.Action = a
	case KindSendMessage:
		var a SendMessage
		if err := decode(&a); err != nil {
			return Record{}, err
		}
		rec.Action = a
	case KindFinishTask:
		var a FinishTask
		if err := decode(&a); err != nil {
			return Record{}, err
		}
		rec.Action = a
	case KindAddTask:
		var a AddTask
		if err := decode(&a); err != nil {
			return Record{}, err
		}
		rec.Action = a
	case KindModifyTask:
		var a ModifyTask
		if err := decode(&a); err != nil {
			return Record{}, err
		}
		rec.Action = a
	case KindNullAction:
		rec.Action = NullAction{}
	case KindCommandOutput:
		var o CommandOutput
		if err := decode(&o); err != nil {
			return Record{}, err
		}
		rec.Observation = o
	case KindCodeCellOutput:
		var o CodeCellOutput
		if err := decode(&o); err != nil {
			return Record{}, err
		}
		rec.Observation = o
	case KindDelegateOutput:
		var o DelegateOutput
		if err := decode(&o); err != nil {
			return Record{}, err
		}
		rec.Observation = o
	case KindBrowserOutput:
		var o BrowserOutput
		if err := decode(&o); err != nil {
			return Record{}, err
		}
		rec.Observation = o
	case KindError:
		var o ErrorObservation
		if err := decode(&o); err != nil {
			return Record{}, err
		}
		rec.Observation = o
	case KindNullObservation:
		rec.Observation = NullObservation{}
	default:
		return Record{}, fmt.Errorf("unknown record kind %q", env.Kind)
	}
	return rec, nil
}

// RestoreHistory rebuilds a History from persisted records. The next
// sequence id continues past the highest restored id.
func RestoreHistory(records []Record) *History {
	h := NewHistory()
	for _, rec := range records {
		h.records = append(h.records, rec)
		if rec.Action != nil {
			h.chars += int64(len(actionText(rec.Action)))
		} else if rec.Observation != nil {
			h.chars += int64(len(observationText(rec.Observation)))
		}
		if rec.Seq >= h.nextSeq {
			h.nextSeq = rec.Seq + 1
		}
	}
	return h
}
