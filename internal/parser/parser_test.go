package parser

import (
	"strings"
	"testing"

	"github.com/driftworks/agentd/internal/events"
)

func TestParseCommand(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("Let me list the files.\n<execute_bash>\nls -la\n</execute_bash>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cmd, ok := action.(events.RunCommand)
	if !ok {
		t.Fatalf("expected RunCommand, got %T", action)
	}
	if cmd.Command != "ls -la" {
		t.Fatalf("expected trimmed command, got %q", cmd.Command)
	}
	if cmd.Thought != "Let me list the files." {
		t.Fatalf("expected surrounding thought, got %q", cmd.Thought)
	}
}

func TestParseFinishBeatsCommand(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("<finish></finish>\n<execute_bash>ls</execute_bash>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := action.(events.FinishTask); !ok {
		t.Fatalf("finish must win over command, got %T", action)
	}
}

func TestParseAutoClosesTruncatedTag(t *testing.T) {
	p := NewResponseParser()
	complete, err := p.Parse("<execute_bash>ls</execute_bash>")
	if err != nil {
		t.Fatalf("parse complete: %v", err)
	}
	truncated, err := p.Parse("<execute_bash>ls")
	if err != nil {
		t.Fatalf("parse truncated: %v", err)
	}
	if complete.(events.RunCommand) != truncated.(events.RunCommand) {
		t.Fatalf("truncated form should parse identically: %#v vs %#v", complete, truncated)
	}
}

func TestParseExitCommandFinishes(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("We are done here.\n<execute_bash>\nexit\n</execute_bash>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := action.(events.FinishTask); !ok {
		t.Fatalf("command body exit must finish, got %T", action)
	}
}

func TestParseCodeCellWithStep(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("Working on it. <plan_step>3</plan_step>\n<execute_ipython>print(1)</execute_ipython>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cell, ok := action.(events.RunCodeCell)
	if !ok {
		t.Fatalf("expected RunCodeCell, got %T", action)
	}
	if cell.Step != 3 {
		t.Fatalf("expected step 3, got %d", cell.Step)
	}
	if strings.Contains(cell.Thought, "plan_step") {
		t.Fatalf("step annotation should be stripped from thought: %q", cell.Thought)
	}
}

func TestParseMalformedStepFails(t *testing.T) {
	p := NewResponseParser()
	_, err := p.Parse("<plan_step>three</plan_step><execute_bash>ls</execute_bash>")
	if err == nil {
		t.Fatalf("expected error for non-integer step annotation")
	}
}

func TestParseBrowse(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("I need docs.\n<execute_browse>open golang.org</execute_browse>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	del, ok := action.(events.DelegateToAgent)
	if !ok {
		t.Fatalf("expected DelegateToAgent, got %T", action)
	}
	if del.Agent != "BrowsingAgent" {
		t.Fatalf("expected BrowsingAgent, got %q", del.Agent)
	}
	if !strings.Contains(del.Task, "open golang.org") {
		t.Fatalf("task should carry the browse body: %q", del.Task)
	}
}

func TestParseDelegateWithAgentName(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("<execute_delegate>PlannerAgent: break down the migration</execute_delegate>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	del := action.(events.DelegateToAgent)
	if del.Agent != "PlannerAgent" || del.Task != "break down the migration" {
		t.Fatalf("unexpected delegate: %#v", del)
	}
}

func TestParseSavePlan(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("<save_plan>\nfix the build\nrun the tests\nship it\n</save_plan>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	add, ok := action.(events.AddTask)
	if !ok {
		t.Fatalf("expected AddTask, got %T", action)
	}
	if add.Goal != "fix the build" || len(add.Subtasks) != 2 {
		t.Fatalf("unexpected plan: %#v", add)
	}
}

func TestParsePlanStepAlone(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("Moving on. <plan_step>2</plan_step>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mod, ok := action.(events.ModifyTask)
	if !ok {
		t.Fatalf("expected ModifyTask, got %T", action)
	}
	if mod.TaskID != "2" || mod.State != "in_progress" {
		t.Fatalf("unexpected modify: %#v", mod)
	}
}

func TestParseFallbackMessage(t *testing.T) {
	p := NewResponseParser()
	action, err := p.Parse("Could you clarify which directory you mean?")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	msg, ok := action.(events.SendMessage)
	if !ok {
		t.Fatalf("expected SendMessage, got %T", action)
	}
	if !msg.WaitForResponse {
		t.Fatalf("fallback message should wait for a reply")
	}
}
