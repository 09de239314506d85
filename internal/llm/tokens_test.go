package llm

import "testing"

func TestTokenCounterCounts(t *testing.T) {
	c := NewTokenCounter("gpt-4")
	if got := c.Count(""); got != 0 {
		t.Fatalf("empty text should count 0 tokens, got %d", got)
	}
	short := c.Count("hello")
	long := c.Count("hello world, this is a longer sentence with more words in it")
	if short <= 0 {
		t.Fatalf("non-empty text should count at least 1 token, got %d", short)
	}
	if long <= short {
		t.Fatalf("longer text should count more tokens: %d vs %d", long, short)
	}
}

func TestTokenCounterMessagesIncludeOverhead(t *testing.T) {
	c := NewTokenCounter("unknown-model")
	msgs := []Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
	}
	sum := c.Count("be helpful") + c.Count("hi")
	if got := c.CountMessages(msgs); got != sum+2*perMessageOverhead {
		t.Fatalf("expected %d, got %d", sum+2*perMessageOverhead, got)
	}
}
