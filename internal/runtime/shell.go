// Package runtime executes agent actions against the local machine: a
// shell sandbox with a per-session working directory, and a code cell
// runner for interpreter snippets.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/driftworks/agentd/internal/events"
)

const DefaultMaxOutputBytes = 64 * 1024

// Sandbox runs shell commands inside a fixed working directory.
// Commands dispatched in the background keep running after Run
// returns; their output is collected later via DrainBackground.
type Sandbox struct {
	Dir            string
	MaxOutputBytes int

	mu     sync.Mutex
	nextID int64
	bg     map[int64]*bgCommand
}

type bgCommand struct {
	id      int64
	command string
	cmd     *exec.Cmd
	buf     *lockedBuffer
	done    chan struct{}
	err     error
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func NewSandbox(dir string) *Sandbox {
	return &Sandbox{Dir: dir, MaxOutputBytes: DefaultMaxOutputBytes, bg: map[int64]*bgCommand{}}
}

// Run executes a command action and returns its output observation.
// Background commands return immediately with a started notice.
func (s *Sandbox) Run(ctx context.Context, action events.RunCommand) events.CommandOutput {
	if action.Background {
		return s.startBackground(action)
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", action.Command)
	cmd.Dir = s.Dir
	out, err := cmd.CombinedOutput()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return events.CommandOutput{
				Command:  action.Command,
				ExitCode: -1,
				Content:  fmt.Sprintf("command failed to start: %v", err),
			}
		}
	}
	content, truncated := s.cap(string(out))
	return events.CommandOutput{
		Command:   action.Command,
		ExitCode:  exitCode,
		Content:   content,
		Truncated: truncated,
	}
}

func (s *Sandbox) startBackground(action events.RunCommand) events.CommandOutput {
	buf := &lockedBuffer{}
	command := strings.TrimSuffix(strings.TrimSpace(action.Command), "&")
	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = s.Dir
	cmd.Stdout = buf
	cmd.Stderr = buf

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	bg := &bgCommand{id: id, command: command, cmd: cmd, buf: buf, done: make(chan struct{})}
	if err := cmd.Start(); err != nil {
		return events.CommandOutput{
			Command:  action.Command,
			ExitCode: -1,
			Content:  fmt.Sprintf("command failed to start: %v", err),
		}
	}
	go func() {
		bg.err = cmd.Wait()
		close(bg.done)
	}()

	s.mu.Lock()
	s.bg[id] = bg
	s.mu.Unlock()

	return events.CommandOutput{
		CommandID: id,
		Command:   action.Command,
		ExitCode:  0,
		Content:   fmt.Sprintf("Command started in background with id %d.", id),
	}
}

// DrainBackground returns output observations for background commands
// that have finished since the last call. Running commands are left in
// place.
func (s *Sandbox) DrainBackground() []events.CommandOutput {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []events.CommandOutput
	for id, bg := range s.bg {
		select {
		case <-bg.done:
		default:
			continue
		}
		exitCode := 0
		if bg.err != nil {
			var exitErr *exec.ExitError
			if errors.As(bg.err, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				exitCode = -1
			}
		}
		content, truncated := s.cap(bg.buf.String())
		out = append(out, events.CommandOutput{
			CommandID: id,
			Command:   bg.command,
			ExitCode:  exitCode,
			Content:   content,
			Truncated: truncated,
		})
		delete(s.bg, id)
	}
	return out
}

// Close kills any still-running background commands.
func (s *Sandbox) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, bg := range s.bg {
		select {
		case <-bg.done:
		default:
			if bg.cmd.Process != nil {
				_ = bg.cmd.Process.Kill()
			}
		}
		delete(s.bg, id)
	}
}

func (s *Sandbox) cap(content string) (string, bool) {
	limit := s.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	if len(content) <= limit {
		return content, false
	}
	return content[:limit], true
}
