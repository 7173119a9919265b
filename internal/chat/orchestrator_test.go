package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/cryptobuddy/internal/classifier"
	"github.com/cryptobuddy/internal/responder"
	"github.com/cryptobuddy/internal/session"
	"github.com/cryptobuddy/internal/storage"
	"github.com/cryptobuddy/pkg/config"
	"github.com/cryptobuddy/pkg/models"
)

type fakeResponder struct {
	mu    sync.Mutex
	calls int
	reply responder.Reply
	err   error
	panic bool
}

func (f *fakeResponder) Respond(_ context.Context, _ string, c classifier.Classification) (responder.Reply, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return responder.Reply{}, f.err
	}
	if f.reply.Kind != "" {
		return f.reply, nil
	}
	return responder.Reply{Kind: responder.KindGreeting, Confidence: 0.95}, nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TurnEvent
	err    error
}

func (r *recordingPublisher) PublishTurn(_ context.Context, e models.TurnEvent) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return r.err
}

func chatConfig(simulate bool) config.ChatConfig {
	return config.ChatConfig{
		Namespace:     "test",
		SimulateDelay: simulate,
		MinDelay:      time.Second,
		MaxDelay:      5 * time.Second,
	}
}

func newTestOrchestrator(t *testing.T, resp Responder, sessions Sessions, opts ...Option) *Orchestrator {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewOrchestrator(chatConfig(false), classifier.New(), resp, sessions, logger, opts...)
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return session.NewStore(storage.NewMemoryStore(), "test", logger)
}

func TestThinkingDelay(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		complexity classifier.Complexity
		want       time.Duration
	}{
		{"one word", "hello", classifier.ComplexitySimple, time.Second},
		{"ten words medium", "one two three four five six seven eight nine ten", classifier.ComplexityMedium, 3 * time.Second},
		{"seven words", "one two three four five six seven", classifier.ComplexitySimple, 1500 * time.Millisecond},
		{"clamped", "a b c d e f g h i j k l m n o p q r s t u v w x y z", classifier.ComplexityComplex, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ThinkingDelay(tt.query, tt.complexity, time.Second, 5*time.Second)
			if got != tt.want {
				t.Errorf("ThinkingDelay() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTimerSleeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	TimerSleeper{}.Sleep(ctx, time.Minute)
	if time.Since(start) > time.Second {
		t.Error("expected sleep to end with the context")
	}
}

func TestHandleTurnEmptyMessage(t *testing.T) {
	o := newTestOrchestrator(t, &fakeResponder{}, nil)

	if _, err := o.HandleTurn(context.Background(), TurnRequest{Text: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestHandleTurnGreeting(t *testing.T) {
	o := newTestOrchestrator(t, &fakeResponder{}, nil)

	result, err := o.HandleTurn(context.Background(), TurnRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Intents) != 1 || result.Intents[0] != classifier.IntentGreeting {
		t.Errorf("expected greeting intent, got %v", result.Intents)
	}
	if result.Complexity != classifier.ComplexitySimple {
		t.Errorf("expected simple complexity, got %s", result.Complexity)
	}
	if result.UserMessage.IsBot || !result.BotMessage.IsBot {
		t.Error("expected user message then bot message")
	}
	if result.UserMessage.Text != "hello" {
		t.Errorf("unexpected user text %q", result.UserMessage.Text)
	}
	if result.BotMessage.Text != result.Reply.Text || result.Reply.Text == "" {
		t.Errorf("bot message and reply text differ: %q vs %q", result.BotMessage.Text, result.Reply.Text)
	}
	if result.Delay != 0 {
		t.Errorf("expected no delay when simulation is off, got %s", result.Delay)
	}
	if result.SessionID != "" {
		t.Errorf("anonymous turn should not get a session, got %s", result.SessionID)
	}
}

func TestHandleTurnApology(t *testing.T) {
	tests := []struct {
		name string
		resp *fakeResponder
	}{
		{"error", &fakeResponder{err: errors.New("upstream down")}},
		{"panic", &fakeResponder{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			o := newTestOrchestrator(t, tt.resp, nil, WithPublisher(pub))

			result, err := o.HandleTurn(context.Background(), TurnRequest{Text: "bitcoin price"})
			if err != nil {
				t.Fatalf("errors must not escape a turn: %v", err)
			}
			if result.Reply.Kind != responder.KindApology {
				t.Errorf("expected apology, got %s", result.Reply.Kind)
			}
			if result.Reply.Confidence != 0.5 {
				t.Errorf("expected confidence 0.5, got %v", result.Reply.Confidence)
			}
			if result.Reply.Text != responder.Apology {
				t.Errorf("unexpected apology text %q", result.Reply.Text)
			}
			if len(pub.events) != 1 || !pub.events[0].Failed {
				t.Errorf("expected one failed turn event, got %+v", pub.events)
			}
		})
	}
}

func TestHandleTurnSimulatedDelay(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sleeper := &recordingSleeper{}
	o := NewOrchestrator(chatConfig(true), classifier.New(), &fakeResponder{}, nil, logger, WithSleeper(sleeper))

	result, err := o.HandleTurn(context.Background(), TurnRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sleeper.delays) != 1 || sleeper.delays[0] != time.Second {
		t.Errorf("expected a single 1s sleep, got %v", sleeper.delays)
	}
	if result.Delay != time.Second {
		t.Errorf("expected reported delay 1s, got %s", result.Delay)
	}
}

func TestHandleTurnAnonymousNotPersisted(t *testing.T) {
	store := newTestStore(t)
	o := newTestOrchestrator(t, &fakeResponder{}, store)

	result, err := o.HandleTurn(context.Background(), TurnRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SessionID != "" {
		t.Errorf("expected no session, got %s", result.SessionID)
	}
}

func TestHandleTurnPersistsForUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	user, err := store.Login(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, &fakeResponder{}, store, WithPublisher(pub))

	first, err := o.HandleTurn(ctx, TurnRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.SessionID == "" {
		t.Fatal("expected a session to be created")
	}

	second, err := o.HandleTurn(ctx, TurnRequest{SessionID: first.SessionID, Text: "thanks"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("expected the same session, got %s and %s", first.SessionID, second.SessionID)
	}

	sessions, err := store.LoadSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	s := sessions[0]
	if len(s.Messages) != 5 {
		t.Fatalf("expected greeting plus two turns, got %d messages", len(s.Messages))
	}
	if s.Messages[0].Text != responder.Greeting || !s.Messages[0].IsBot {
		t.Errorf("expected the greeting first, got %+v", s.Messages[0])
	}
	if s.Title != "hello" {
		t.Errorf("expected title from the first user message, got %q", s.Title)
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	if pub.events[0].UserID != user.ID || pub.events[0].SessionID != first.SessionID {
		t.Errorf("unexpected event %+v", pub.events[0])
	}
}

func TestHandleTurnUnknownSessionStartsNew(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if _, err := store.Login(ctx, "ada@example.com", "secret1"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	o := newTestOrchestrator(t, &fakeResponder{}, store)

	result, err := o.HandleTurn(ctx, TurnRequest{SessionID: "missing", Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SessionID == "" || result.SessionID == "missing" {
		t.Errorf("expected a fresh session id, got %q", result.SessionID)
	}
}

func TestHandleTurnSerializesSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	user, err := store.Login(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	o := newTestOrchestrator(t, &fakeResponder{}, store)

	first, err := o.HandleTurn(ctx, TurnRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.HandleTurn(ctx, TurnRequest{SessionID: first.SessionID, Text: "thanks"}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s, err := store.GetSession(ctx, user.ID, first.SessionID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if want := 3 + 2*turns; len(s.Messages) != want {
		t.Errorf("expected %d messages, got %d", want, len(s.Messages))
	}
	if len(o.locks) != 0 {
		t.Errorf("expected session locks to be released, %d left", len(o.locks))
	}
}
