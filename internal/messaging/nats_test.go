package messaging

import (
	"context"
	"testing"

	"github.com/cryptobuddy/pkg/models"
)

func TestTurnSubject(t *testing.T) {
	tests := []struct {
		session string
		want    string
	}{
		{"", "chat.turns.anonymous"},
		{"3f1c", "chat.turns.3f1c"},
	}

	for _, tt := range tests {
		if got := TurnSubject(tt.session); got != tt.want {
			t.Errorf("TurnSubject(%q) = %s, want %s", tt.session, got, tt.want)
		}
	}
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	if err := p.PublishTurn(context.Background(), models.TurnEvent{Query: "hi"}); err != nil {
		t.Errorf("NopPublisher returned %v", err)
	}
}
