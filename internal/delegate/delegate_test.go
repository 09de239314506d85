package delegate

import (
	"context"
	"strings"
	"testing"

	"github.com/driftworks/agentd/internal/controller"
	"github.com/driftworks/agentd/internal/events"
)

type queueStepper struct {
	actions []events.Action
}

func (s *queueStepper) Step(ctx context.Context, history *events.History, turnsLeft int) (events.Action, error) {
	if len(s.actions) == 0 {
		return events.NullAction{}, nil
	}
	a := s.actions[0]
	s.actions = s.actions[1:]
	return a, nil
}

func TestDelegateReturnsFinalOutput(t *testing.T) {
	r := &Runner{
		NewSession: func(id, agentName string) (*controller.Controller, error) {
			stepper := &queueStepper{actions: []events.Action{
				events.SendMessage{Content: "the answer is 42"},
				events.FinishTask{},
			}}
			return controller.New(id, agentName, stepper, nil), nil
		},
	}

	out, err := r.Delegate(context.Background(), "BrowsingAgent", "find the answer")
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if out.Agent != "BrowsingAgent" {
		t.Fatalf("unexpected agent: %s", out.Agent)
	}
	if !strings.Contains(out.Content, "42") {
		t.Fatalf("unexpected content: %q", out.Content)
	}
}

func TestDelegateSessionsAreIsolated(t *testing.T) {
	var ids []string
	r := &Runner{
		NewSession: func(id, agentName string) (*controller.Controller, error) {
			ids = append(ids, id)
			stepper := &queueStepper{actions: []events.Action{events.FinishTask{}}}
			return controller.New(id, agentName, stepper, nil), nil
		},
	}

	if _, err := r.Delegate(context.Background(), "BrowsingAgent", "one"); err != nil {
		t.Fatalf("first delegate: %v", err)
	}
	if _, err := r.Delegate(context.Background(), "BrowsingAgent", "two"); err != nil {
		t.Fatalf("second delegate: %v", err)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected distinct session ids, got %v", ids)
	}
}

func TestDelegateUnfinishedSessionIsError(t *testing.T) {
	r := &Runner{
		NewSession: func(id, agentName string) (*controller.Controller, error) {
			stepper := &queueStepper{}
			c := controller.New(id, agentName, stepper, nil)
			c.MaxIterations = 2
			return c, nil
		},
	}

	if _, err := r.Delegate(context.Background(), "BrowsingAgent", "never ends"); err == nil {
		t.Fatalf("expected error for unfinished delegate session")
	}
}
