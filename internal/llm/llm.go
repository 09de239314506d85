// Package llm defines the completion collaborator contract and the
// OpenAI-compatible implementation behind it.
package llm

import (
	"context"
	"errors"
)

// Message is the LLM-facing projection of conversation state. It is
// rebuilt from history every step and never persisted.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompleteOptions are per-request knobs. The agent step function pins
// temperature to 0 and supplies the action closing tags as stops.
type CompleteOptions struct {
	Temperature float64
	Stop        []string
}

// Completer is the completion collaborator. Implementations must
// signal a context-window overflow with ErrContextWindow (wrapped is
// fine) so callers can distinguish it from generic failures.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error)
	CountTokens(messages []Message) int
	OverLimit(messages []Message) bool
}

var (
	// ErrContextWindow marks a completion rejected because the request
	// exceeded the model's context window. Recoverable by condensing.
	ErrContextWindow = errors.New("context window exceeded")

	// ErrTokenLimit is raised locally before a request when the token
	// count already exceeds the configured budget.
	ErrTokenLimit = errors.New("token budget exceeded")

	// ErrAuthentication marks credential failures. Always fatal for
	// the session; never converted into an observation.
	ErrAuthentication = errors.New("authentication failed")
)
