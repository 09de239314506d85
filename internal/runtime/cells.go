package runtime

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/driftworks/agentd/internal/events"
)

// CellRunner executes interpreter code cells. Each cell runs in a
// fresh interpreter process; state does not carry between cells.
type CellRunner struct {
	Interpreter    string
	Dir            string
	MaxOutputBytes int
}

func NewCellRunner(dir string) *CellRunner {
	return &CellRunner{Interpreter: "python3", Dir: dir, MaxOutputBytes: DefaultMaxOutputBytes}
}

func (r *CellRunner) Run(ctx context.Context, action events.RunCodeCell) events.CodeCellOutput {
	interpreter := r.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}
	cmd := exec.CommandContext(ctx, interpreter, "-c", action.Code)
	cmd.Dir = r.Dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()

	content := buf.String()
	if err != nil {
		if content == "" {
			content = fmt.Sprintf("cell failed: %v", err)
		}
	}
	limit := r.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	if len(content) > limit {
		content = content[:limit]
	}
	return events.CodeCellOutput{Code: action.Code, Content: content}
}
