package models

import (
	"testing"
)

func TestTitleFromTextTruncates(t *testing.T) {
	text := "What's the best crypto for sustainability and long term growth into the future of finance?"

	got := TitleFromText(text)
	want := text[:50] + "..."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTitleFromTextKeepsShortText(t *testing.T) {
	if got := TitleFromText("Tell me about Bitcoin"); got != "Tell me about Bitcoin" {
		t.Errorf("unexpected title %q", got)
	}

	exact := "12345678901234567890123456789012345678901234567890"
	if got := TitleFromText(exact); got != exact {
		t.Errorf("50 characters should not be truncated, got %q", got)
	}
}

func TestSessionTitleUsesFirstUserMessage(t *testing.T) {
	messages := []ChatMessage{
		{ID: "1", Text: "Hey there! I'm CryptoBuddy", IsBot: true},
		{ID: "2", Text: "Compare Bitcoin vs Ethereum"},
		{ID: "3", Text: "Which is greener?"},
	}

	if got := SessionTitle(messages, DefaultSessionTitle); got != "Compare Bitcoin vs Ethereum" {
		t.Errorf("unexpected title %q", got)
	}

	if got := SessionTitle(messages[:1], DefaultSessionTitle); got != DefaultSessionTitle {
		t.Errorf("expected fallback title, got %q", got)
	}
}
