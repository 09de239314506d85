// Package memory condenses over-budget conversations: a contiguous
// run of older messages is replaced by one summary so the session can
// continue inside the model's context window.
package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftworks/agentd/internal/llm"
)

// preservedHead is the number of leading messages never condensed:
// the system prompt and the in-context example.
const preservedHead = 2

// truncTokenFrac is the fraction of the buffer's token mass targeted
// for removal per condensation pass.
const truncTokenFrac = 0.75

// CondenseError signals that condensation cannot make progress. The
// caller must treat it as fatal for the current step; retrying would
// select the same candidate range again.
type CondenseError struct {
	Reason string
}

func (e *CondenseError) Error() string {
	return "condense: " + e.Reason
}

// TokenCounter is the slice of the LLM collaborator the condenser
// needs. llm.Completer satisfies it.
type TokenCounter interface {
	CountTokens(messages []llm.Message) int
}

// Summarizer produces one summary string for a message run.
type Summarizer interface {
	Summarize(ctx context.Context, messages []llm.Message) (string, error)
}

// Condenser selects a cut point and folds older messages into a
// summary. It is reactive only: callers invoke it after a token-limit
// failure, never proactively.
type Condenser struct {
	Counter    TokenCounter
	Summarizer Summarizer
	Log        *slog.Logger
}

// Condense returns a strictly smaller (by token count) message
// sequence or a CondenseError.
func (c *Condenser) Condense(ctx context.Context, messages []llm.Message) ([]llm.Message, error) {
	if len(messages) <= preservedHead {
		return nil, &CondenseError{Reason: "no removable messages"}
	}

	counts := make([]int, 0, len(messages)-preservedHead)
	bufferTotal := 0
	for _, msg := range messages[preservedHead:] {
		n := c.Counter.CountTokens([]llm.Message{msg})
		counts = append(counts, n)
		bufferTotal += n
	}
	target := int(float64(bufferTotal) * truncTokenFrac)

	cutoff := preservedHead
	running := 0
	for i, n := range counts {
		cutoff = preservedHead + i
		running += n
		if running > target {
			break
		}
	}

	// Prefer ending the summarized block on an assistant turn so the
	// next visible turn opens with a clean user prompt. One shift
	// only: if the shifted cutoff is still a user message we accept it
	// rather than walk further.
	if cutoff < len(messages) && messages[cutoff].Role == llm.RoleUser {
		cutoff++
		if cutoff < len(messages) && messages[cutoff].Role == llm.RoleUser {
			c.log().Debug("shifted cutoff still lands on a user message", "cutoff", cutoff)
		}
	}
	if cutoff > len(messages) {
		cutoff = len(messages)
	}

	candidate := messages[preservedHead:cutoff]
	if len(candidate) <= 1 {
		return nil, &CondenseError{
			Reason: fmt.Sprintf("not enough messages to compress (candidate=%d of %d)", len(candidate), len(messages)),
		}
	}

	summary, err := c.Summarizer.Summarize(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("summarize messages [%d:%d): %w", preservedHead, cutoff, err)
	}

	condensed := make([]llm.Message, 0, len(messages)-len(candidate)+1)
	condensed = append(condensed, messages[:preservedHead]...)
	condensed = append(condensed, llm.Message{Role: llm.RoleAssistant, Content: summary})
	condensed = append(condensed, messages[cutoff:]...)

	before := c.Counter.CountTokens(messages)
	after := c.Counter.CountTokens(condensed)
	if after >= before {
		return nil, &CondenseError{
			Reason: fmt.Sprintf("summary did not reduce size (%d -> %d tokens)", before, after),
		}
	}
	c.log().Info("condensed history", "messages_before", len(messages),
		"messages_after", len(condensed), "tokens_before", before, "tokens_after", after)
	return condensed, nil
}

func (c *Condenser) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
