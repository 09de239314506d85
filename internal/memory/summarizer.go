package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftworks/agentd/internal/llm"
)

const summarizePrompt = `Summarize the following conversation between an autonomous agent and its environment.
Preserve: the user's goal, commands run and their outcomes, files touched, decisions made, and anything still pending.
Be concise and factual. The summary replaces this part of the conversation permanently.`

// LLMSummarizer folds a message run into one summary via a separate
// completion call.
type LLMSummarizer struct {
	Client llm.Completer
}

func NewLLMSummarizer(client llm.Completer) *LLMSummarizer {
	return &LLMSummarizer{Client: client}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, messages []llm.Message) (string, error) {
	var sb strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&sb, "%s: %s\n\n", strings.ToUpper(msg.Role), msg.Content)
	}
	request := []llm.Message{
		{Role: llm.RoleSystem, Content: summarizePrompt},
		{Role: llm.RoleUser, Content: sb.String()},
	}
	out, err := s.Client.Complete(ctx, request, llm.CompleteOptions{Temperature: 0})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
