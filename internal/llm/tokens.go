package llm

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the role and separator tokens the
// chat format adds around each message.
const perMessageOverhead = 5

// TokenCounter counts tokens with the model's BPE encoding when
// tiktoken knows the model, falling back to a character heuristic for
// models it does not cover.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			enc = nil
		}
	}
	return &TokenCounter{enc: enc}
}

func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	// Rough ratio of one token per four characters.
	n := utf8.RuneCountInString(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

func (c *TokenCounter) CountMessages(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += perMessageOverhead + c.Count(msg.Content)
	}
	return total
}
