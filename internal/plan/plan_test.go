package plan

import (
	"strings"
	"testing"
)

func TestAddSubtaskAndLookup(t *testing.T) {
	p := New("ship the feature")
	if err := p.AddSubtask("", "write code", []string{"tests", "docs"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	task, err := p.Get("0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.Goal != "write code" || len(task.Subtasks) != 2 {
		t.Fatalf("unexpected task %#v", task)
	}
	sub, err := p.Get("0.1")
	if err != nil {
		t.Fatalf("get sub: %v", err)
	}
	if sub.Goal != "docs" {
		t.Fatalf("expected docs, got %q", sub.Goal)
	}
}

func TestSetStateCascades(t *testing.T) {
	p := New("goal")
	if err := p.AddSubtask("", "parent", []string{"a", "b"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := p.SetState("0", StateClosed); err != nil {
		t.Fatalf("set state: %v", err)
	}
	for _, id := range []string{"0.0", "0.1"} {
		task, err := p.Get(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if task.State != StateClosed {
			t.Fatalf("expected %s closed, got %s", id, task.State)
		}
	}
}

func TestSetStateRejectsBadInput(t *testing.T) {
	p := New("goal")
	if err := p.SetState("0", StateClosed); err == nil {
		t.Fatalf("expected error for missing task")
	}
	_ = p.AddSubtask("", "a", nil)
	if err := p.SetState("0", "done"); err == nil {
		t.Fatalf("expected error for invalid state")
	}
	if err := p.SetState("zero", StateClosed); err == nil {
		t.Fatalf("expected error for malformed id")
	}
}

func TestStringRendersTree(t *testing.T) {
	p := New("goal")
	_ = p.AddSubtask("", "first", []string{"leaf"})
	out := p.String()
	if !strings.Contains(out, "Goal: goal") || !strings.Contains(out, "[0.0] leaf") {
		t.Fatalf("unexpected rendering:\n%s", out)
	}
}
