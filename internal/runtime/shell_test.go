package runtime

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/driftworks/agentd/internal/events"
)

func TestSandboxRunCommand(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	s := NewSandbox(t.TempDir())

	out := s.Run(context.Background(), events.RunCommand{Command: "echo hello"})
	if out.ExitCode != 0 {
		t.Fatalf("exit code: %d", out.ExitCode)
	}
	if strings.TrimSpace(out.Content) != "hello" {
		t.Fatalf("unexpected output: %q", out.Content)
	}
}

func TestSandboxNonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	s := NewSandbox(t.TempDir())

	out := s.Run(context.Background(), events.RunCommand{Command: "exit 3"})
	if out.ExitCode != 3 {
		t.Fatalf("expected exit 3, got %d", out.ExitCode)
	}
}

func TestSandboxWorkingDirectory(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	dir := t.TempDir()
	s := NewSandbox(dir)

	out := s.Run(context.Background(), events.RunCommand{Command: "pwd"})
	if strings.TrimSpace(out.Content) != dir {
		t.Fatalf("expected %q, got %q", dir, out.Content)
	}
}

func TestSandboxOutputCap(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	s := NewSandbox(t.TempDir())
	s.MaxOutputBytes = 16

	out := s.Run(context.Background(), events.RunCommand{Command: "printf '%0.sx' {1..100}"})
	if !out.Truncated {
		t.Fatalf("expected truncated output")
	}
	if len(out.Content) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(out.Content))
	}
}

func TestSandboxBackgroundCommand(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	s := NewSandbox(t.TempDir())
	defer s.Close()

	out := s.Run(context.Background(), events.RunCommand{Command: "echo bg &", Background: true})
	if out.CommandID == 0 {
		t.Fatalf("expected background command id")
	}
	if !strings.Contains(out.Content, "background") {
		t.Fatalf("expected started notice, got %q", out.Content)
	}

	deadline := time.After(5 * time.Second)
	for {
		drained := s.DrainBackground()
		if len(drained) == 1 {
			if drained[0].CommandID != out.CommandID {
				t.Fatalf("id mismatch: %d vs %d", drained[0].CommandID, out.CommandID)
			}
			if strings.TrimSpace(drained[0].Content) != "bg" {
				t.Fatalf("unexpected output: %q", drained[0].Content)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for background command")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestCellRunner(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	r := NewCellRunner(t.TempDir())

	out := r.Run(context.Background(), events.RunCodeCell{Code: "print(2 + 2)"})
	if strings.TrimSpace(out.Content) != "4" {
		t.Fatalf("unexpected output: %q", out.Content)
	}
}
