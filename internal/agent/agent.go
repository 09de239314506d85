// Package agent implements one decision step: project history into
// messages, obtain a completion within the token budget, and parse the
// response into a typed action.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftworks/agentd/internal/events"
	"github.com/driftworks/agentd/internal/llm"
	"github.com/driftworks/agentd/internal/memory"
	"github.com/driftworks/agentd/internal/parser"
	"github.com/driftworks/agentd/internal/prompt"
)

// ExitSentinel short-circuits a step to FinishTask without an LLM
// call when it is the latest user message.
const ExitSentinel = "/exit"

// defaultAttempts bounds completion attempts per step; each failed
// attempt due to a token limit buys exactly one condensation pass.
const defaultAttempts = 2

// ErrContextWindowLimit means the retry budget ran out without a
// completion; the session cannot proceed without intervention.
var ErrContextWindowLimit = errors.New("context window limit exceeded after condensation attempts")

// Agent is the step function. Stateless between steps: everything it
// needs is read from History each call.
type Agent struct {
	Name               string
	LLM                llm.Completer
	Parser             *parser.ResponseParser
	Assembler          *prompt.Assembler
	Condenser          *memory.Condenser
	AttemptsToCondense int
	Log                *slog.Logger
}

func New(name string, client llm.Completer) *Agent {
	return &Agent{
		Name:      name,
		LLM:       client,
		Parser:    parser.NewResponseParser(),
		Assembler: prompt.NewAssembler(),
		Condenser: &memory.Condenser{
			Counter:    client,
			Summarizer: memory.NewLLMSummarizer(client),
		},
		AttemptsToCondense: defaultAttempts,
	}
}

// Step produces the agent's next action for the given history.
// turnsLeft feeds the environment reminder on the latest user message.
func (a *Agent) Step(ctx context.Context, history *events.History, turnsLeft int) (events.Action, error) {
	if strings.TrimSpace(history.LastUserMessage()) == ExitSentinel {
		return events.FinishTask{}, nil
	}

	messages := a.Assembler.Build(history, turnsLeft)

	attempts := a.AttemptsToCondense
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	var response string
	completed := false
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := a.complete(ctx, messages)
		if err == nil {
			response = out
			completed = true
			break
		}
		if !isTokenLimit(err) {
			// Anything but a context overflow is not retryable here.
			return nil, err
		}
		if attempt == attempts-1 {
			break
		}
		a.log().Warn("completion hit token limit, condensing", "attempt", attempt+1)
		condensed, cerr := a.Condenser.Condense(ctx, messages)
		if cerr != nil {
			// Retrying would pick the same candidate range again, so
			// surface the failure instead of looping.
			return nil, fmt.Errorf("condense after token limit: %w", cerr)
		}
		messages = condensed
	}
	if !completed {
		return nil, ErrContextWindowLimit
	}

	action, err := a.Parser.Parse(response)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return action, nil
}

func (a *Agent) complete(ctx context.Context, messages []llm.Message) (string, error) {
	if a.LLM.OverLimit(messages) {
		return "", llm.ErrTokenLimit
	}
	// Temperature is pinned and the closing action tags act as stop
	// sequences so the model cannot fabricate observations.
	return a.LLM.Complete(ctx, messages, llm.CompleteOptions{
		Temperature: 0.0,
		Stop:        parser.StopSequences(),
	})
}

func isTokenLimit(err error) bool {
	return errors.Is(err, llm.ErrTokenLimit) || errors.Is(err, llm.ErrContextWindow)
}

func (a *Agent) log() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}
