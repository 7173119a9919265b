package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cryptobuddy/internal/chat"
)

type echoTurns struct {
	sessions []string
}

func (e *echoTurns) HandleTurn(_ context.Context, req chat.TurnRequest) (*chat.TurnResult, error) {
	e.sessions = append(e.sessions, req.SessionID)
	return &chat.TurnResult{
		SessionID:   "s1",
		Reply:       chat.TurnReply{Text: "echo: " + req.Text},
		Suggestions: []string{"What's the price of Bitcoin?"},
	}, nil
}

func TestChatLoop(t *testing.T) {
	turns := &echoTurns{}
	var out bytes.Buffer

	in := strings.NewReader("hello\n\nbitcoin price\nquit\nnever read\n")
	if err := chatLoop(context.Background(), turns, in, &out, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	for _, want := range []string{"echo: hello", "echo: bitcoin price", "💡 Try asking:", "Goodbye!"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(got, "never read") {
		t.Error("input after quit should be ignored")
	}

	if len(turns.sessions) != 2 || turns.sessions[0] != "" || turns.sessions[1] != "s1" {
		t.Errorf("expected the session to carry over, got %v", turns.sessions)
	}
}

func TestChatLoopEOF(t *testing.T) {
	var out bytes.Buffer
	if err := chatLoop(context.Background(), &echoTurns{}, strings.NewReader(""), &out, ""); err != nil {
		t.Fatalf("unexpected error at EOF: %v", err)
	}
}
