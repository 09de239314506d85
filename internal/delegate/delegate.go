// Package delegate runs a nested session for another agent and hands
// its final output back as an observation.
package delegate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftworks/agentd/internal/controller"
	"github.com/driftworks/agentd/internal/events"
	"github.com/driftworks/agentd/internal/idgen"
)

// Runner delegates tasks by spinning up an isolated child session.
// NewSession builds a controller for the named agent; the child gets
// its own session id, workspace, and history, sharing nothing with
// the parent.
type Runner struct {
	NewSession func(sessionID, agentName string) (*controller.Controller, error)
	Log        *slog.Logger
}

func (r *Runner) Delegate(ctx context.Context, agentName, task string) (events.DelegateOutput, error) {
	if r.NewSession == nil {
		return events.DelegateOutput{}, fmt.Errorf("no session factory configured")
	}
	id := idgen.New()
	child, err := r.NewSession(id, agentName)
	if err != nil {
		return events.DelegateOutput{}, fmt.Errorf("create delegate session: %w", err)
	}
	if r.Log != nil {
		r.Log.Info("delegating task", "agent", agentName, "session", id)
	}

	if err := child.Start(ctx, task); err != nil {
		return events.DelegateOutput{}, fmt.Errorf("delegate session %s: %w", id, err)
	}
	if st := child.State(); st != controller.StateFinished {
		return events.DelegateOutput{}, fmt.Errorf("delegate session %s ended in state %s", id, st)
	}
	return events.DelegateOutput{Agent: agentName, Content: finalOutput(child.History())}, nil
}

// finalOutput is the last substantive thing the child said or saw.
func finalOutput(h *events.History) string {
	var out string
	h.WalkBack(func(rec events.Record) bool {
		if rec.Source == events.SourceUser {
			return true
		}
		var msg string
		switch {
		case rec.Action != nil:
			if fin, ok := rec.Action.(events.FinishTask); ok {
				// Only a deliberate closing thought counts as output.
				msg = fin.Thought
			} else {
				msg = rec.Action.Message()
			}
		case rec.Observation != nil:
			msg = rec.Observation.Message()
		}
		if msg != "" {
			out = msg
			return false
		}
		return true
	})
	return out
}
