package prompt

import (
	"strings"
	"testing"

	"github.com/driftworks/agentd/internal/events"
	"github.com/driftworks/agentd/internal/llm"
)

func TestBuildLeadsWithSystemAndExample(t *testing.T) {
	h := events.NewHistory()
	h.AppendAction(events.SendMessage{Content: "list files"}, events.SourceUser)

	msgs := NewAssembler().Build(h, 5)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem {
		t.Fatalf("first message must be system, got %s", msgs[0].Role)
	}
	if msgs[1].Role != llm.RoleUser || !strings.Contains(msgs[1].Content, "example") {
		t.Fatalf("second message must be the in-context example")
	}
}

func TestBuildCommandObservationFormat(t *testing.T) {
	h := events.NewHistory()
	h.AppendAction(events.SendMessage{Content: "list files"}, events.SourceUser)
	seq := h.AppendAction(events.RunCommand{Command: "ls"}, events.SourceAgent)
	h.AppendObservation(events.CommandOutput{CommandID: seq, Command: "ls", ExitCode: 0, Content: "a.txt\nb.txt"}, seq)

	msgs := NewAssembler().Build(h, 9)
	last := msgs[len(msgs)-1]
	want := "OBSERVATION:\na.txt\nb.txt\n[Command 2 finished with exit code 0]"
	if !strings.Contains(last.Content, want) {
		t.Fatalf("observation message %q missing %q", last.Content, want)
	}
}

func TestBuildReminderOnLatestUserMessage(t *testing.T) {
	h := events.NewHistory()
	h.AppendAction(events.SendMessage{Content: "do the thing"}, events.SourceUser)
	h.AppendAction(events.SendMessage{Content: "working on it"}, events.SourceAgent)

	msgs := NewAssembler().Build(h, 7)
	var reminders int
	var lastUser int = -1
	for i, msg := range msgs {
		if strings.Contains(msg.Content, "ENVIRONMENT REMINDER: You have 7 turns left") {
			reminders++
		}
		if msg.Role == llm.RoleUser {
			lastUser = i
		}
	}
	if reminders != 1 {
		t.Fatalf("expected exactly one reminder, got %d", reminders)
	}
	if !strings.Contains(msgs[lastUser].Content, "ENVIRONMENT REMINDER") {
		t.Fatalf("reminder must be on the latest user message")
	}
}

func TestBuildReminderDoesNotMutateHistory(t *testing.T) {
	h := events.NewHistory()
	h.AppendAction(events.SendMessage{Content: "task"}, events.SourceUser)
	_ = NewAssembler().Build(h, 3)
	if got := h.LastUserMessage(); got != "task" {
		t.Fatalf("history was mutated: %q", got)
	}
}

func TestBuildImagePlaceholder(t *testing.T) {
	h := events.NewHistory()
	h.AppendAction(events.SendMessage{Content: "plot it"}, events.SourceUser)
	seq := h.AppendAction(events.RunCodeCell{Code: "plot()"}, events.SourceAgent)
	h.AppendObservation(events.CodeCellOutput{
		Code:    "plot()",
		Content: "figure below\n![image](data:image/png;base64,AAAAAAAA)\ndone",
	}, seq)

	msgs := NewAssembler().Build(h, 4)
	last := msgs[len(msgs)-1]
	if strings.Contains(last.Content, "AAAAAAAA") {
		t.Fatalf("raw base64 payload leaked into message view")
	}
	if !strings.Contains(last.Content, ImagePlaceholder) {
		t.Fatalf("expected image placeholder in %q", last.Content)
	}
}

func TestBuildTruncatesLongObservation(t *testing.T) {
	h := events.NewHistory()
	h.AppendAction(events.SendMessage{Content: "go"}, events.SourceUser)
	seq := h.AppendAction(events.RunCommand{Command: "cat big"}, events.SourceAgent)
	h.AppendObservation(events.CommandOutput{CommandID: seq, Content: strings.Repeat("x", 500)}, seq)

	a := NewAssembler()
	a.MaxObservationChars = 100
	msgs := a.Build(h, 2)
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Content, "characters elided") {
		t.Fatalf("expected elision marker in truncated observation")
	}
	if len(last.Content) > 300 {
		t.Fatalf("truncated observation still too long: %d", len(last.Content))
	}
}

func TestBuildSkipsNonConversationalEvents(t *testing.T) {
	h := events.NewHistory()
	h.AppendAction(events.SendMessage{Content: "go"}, events.SourceUser)
	h.AppendAction(events.NullAction{}, events.SourceAgent)
	h.AppendObservation(events.NullObservation{}, 0)
	h.AppendAction(events.AddTask{Goal: "plan"}, events.SourceAgent)

	msgs := NewAssembler().Build(h, 1)
	if len(msgs) != 3 {
		t.Fatalf("expected only system, example and user message, got %d", len(msgs))
	}
}
