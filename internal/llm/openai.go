package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// Config selects the model endpoint. BaseURL supports any
// OpenAI-compatible server.
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
	// ContextWindow is the token budget used by OverLimit. Zero
	// disables the local pre-check.
	ContextWindow int
	MaxTokens     int
}

// OpenAIClient implements Completer over the chat completions API.
type OpenAIClient struct {
	client  openai.Client
	config  Config
	counter *TokenCounter
}

func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		config:  cfg,
		counter: NewTokenCounter(cfg.Model),
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.config.Model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(opts.Temperature),
	}
	if len(opts.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.Stop}
	}
	if c.config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.config.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) CountTokens(messages []Message) int {
	return c.counter.CountMessages(messages)
}

func (c *OpenAIClient) OverLimit(messages []Message) bool {
	if c.config.ContextWindow <= 0 {
		return false
	}
	return c.CountTokens(messages) > c.config.ContextWindow
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out[i] = openai.SystemMessage(msg.Content)
		case RoleAssistant:
			out[i] = openai.AssistantMessage(msg.Content)
		default:
			out[i] = openai.UserMessage(msg.Content)
		}
	}
	return out
}

// classifyError maps provider failures onto the session error
// taxonomy: 401 is fatal, context overflow is condensable, everything
// else passes through for the controller to record.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		case apiErr.Code == "context_length_exceeded":
			return fmt.Errorf("%w: %v", ErrContextWindow, err)
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "context length") || strings.Contains(msg, "context window") ||
		strings.Contains(msg, "maximum context") {
		return fmt.Errorf("%w: %v", ErrContextWindow, err)
	}
	return err
}
