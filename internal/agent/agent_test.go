package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/driftworks/agentd/internal/events"
	"github.com/driftworks/agentd/internal/llm"
)

// scriptedLLM returns queued responses or errors in order and counts
// tokens one-per-character so tests control the budget precisely.
type scriptedLLM struct {
	responses []any // string or error
	calls     int
	limit     int
}

func (s *scriptedLLM) Complete(_ context.Context, _ []llm.Message, _ llm.CompleteOptions) (string, error) {
	if s.calls >= len(s.responses) {
		return "", fmt.Errorf("unexpected completion call %d", s.calls)
	}
	item := s.responses[s.calls]
	s.calls++
	if err, ok := item.(error); ok {
		return "", err
	}
	return item.(string), nil
}

func (s *scriptedLLM) CountTokens(messages []llm.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total
}

func (s *scriptedLLM) OverLimit(messages []llm.Message) bool {
	return s.limit > 0 && s.CountTokens(messages) > s.limit
}

func taskHistory(task string) *events.History {
	h := events.NewHistory()
	h.AppendAction(events.SendMessage{Content: task}, events.SourceUser)
	return h
}

func TestStepParsesCommand(t *testing.T) {
	client := &scriptedLLM{responses: []any{"Listing.\n<execute_bash>\nls\n</execute_bash>"}}
	a := New("CodeActAgent", client)

	action, err := a.Step(context.Background(), taskHistory("list files"), 10)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	cmd, ok := action.(events.RunCommand)
	if !ok {
		t.Fatalf("expected RunCommand, got %T", action)
	}
	if cmd.Command != "ls" {
		t.Fatalf("unexpected command %q", cmd.Command)
	}
}

func TestStepExitSentinelSkipsLLM(t *testing.T) {
	client := &scriptedLLM{}
	a := New("CodeActAgent", client)

	action, err := a.Step(context.Background(), taskHistory("  /exit  "), 10)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if _, ok := action.(events.FinishTask); !ok {
		t.Fatalf("expected FinishTask, got %T", action)
	}
	if client.calls != 0 {
		t.Fatalf("sentinel must not call the LLM, got %d calls", client.calls)
	}
}

func TestStepCondensesOnTokenLimitThenSucceeds(t *testing.T) {
	client := &scriptedLLM{responses: []any{
		llm.ErrContextWindow,
		"summary of everything so far", // summarizer call
		"<execute_bash>pwd</execute_bash>",
	}}
	a := New("CodeActAgent", client)

	h := taskHistory("long running task")
	for i := 0; i < 6; i++ {
		seq := h.AppendAction(events.RunCommand{Command: "step"}, events.SourceAgent)
		h.AppendObservation(events.CommandOutput{CommandID: seq, Content: "output output output"}, seq)
	}

	action, err := a.Step(context.Background(), h, 4)
	if err != nil {
		t.Fatalf("step should recover via condensation: %v", err)
	}
	if _, ok := action.(events.RunCommand); !ok {
		t.Fatalf("expected action from retry, got %T", action)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 LLM calls (fail, summarize, retry), got %d", client.calls)
	}
}

func TestStepNonTokenErrorIsFatal(t *testing.T) {
	boom := errors.New("connection refused")
	client := &scriptedLLM{responses: []any{boom}}
	a := New("CodeActAgent", client)

	_, err := a.Step(context.Background(), taskHistory("task"), 5)
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error to propagate, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("non-token errors must not be retried, got %d calls", client.calls)
	}
}

func TestStepExhaustedRetriesFails(t *testing.T) {
	client := &scriptedLLM{responses: []any{
		llm.ErrContextWindow,
		"summary", // summarizer call for attempt 1
		llm.ErrContextWindow,
	}}
	a := New("CodeActAgent", client)

	h := taskHistory("task")
	for i := 0; i < 6; i++ {
		seq := h.AppendAction(events.RunCommand{Command: "x"}, events.SourceAgent)
		h.AppendObservation(events.CommandOutput{CommandID: seq, Content: "yyyyyyyyyy"}, seq)
	}

	_, err := a.Step(context.Background(), h, 2)
	if !errors.Is(err, ErrContextWindowLimit) {
		t.Fatalf("expected ErrContextWindowLimit, got %v", err)
	}
}
