package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/internal/classifier"
	"github.com/cryptobuddy/internal/messaging"
	"github.com/cryptobuddy/internal/responder"
	"github.com/cryptobuddy/internal/session"
	"github.com/cryptobuddy/pkg/config"
	"github.com/cryptobuddy/pkg/models"
)

// apologyConfidence is reported when a reply could not be generated
const apologyConfidence = 0.5

var ErrEmptyMessage = errors.New("message text is empty")

// Responder turns a classified query into a reply
type Responder interface {
	Respond(ctx context.Context, query string, c classifier.Classification) (responder.Reply, error)
}

// Sessions is the part of the session store a turn needs
type Sessions interface {
	CurrentUser(ctx context.Context) (*models.User, error)
	GetSession(ctx context.Context, userID, sessionID string) (*models.ChatSession, error)
	CreateSession(ctx context.Context, userID string, initial *models.ChatMessage) (*models.ChatSession, error)
	UpdateSession(ctx context.Context, userID, sessionID string, messages []models.ChatMessage) (*models.ChatSession, error)
}

// Publisher announces delivered turns
type Publisher interface {
	PublishTurn(ctx context.Context, event models.TurnEvent) error
}

// TurnRequest is one user message, optionally continuing a session
type TurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// TurnReply is the rendered reply plus its structured payload
type TurnReply struct {
	Kind       responder.Kind `json:"kind"`
	Text       string         `json:"text"`
	Data       interface{}    `json:"data,omitempty"`
	Sources    []string       `json:"sources,omitempty"`
	Confidence float64        `json:"confidence"`
}

// TurnResult is what a delivered turn hands back to the caller
type TurnResult struct {
	SessionID   string                `json:"session_id,omitempty"`
	UserMessage models.ChatMessage    `json:"user_message"`
	BotMessage  models.ChatMessage    `json:"bot_message"`
	Reply       TurnReply             `json:"reply"`
	Intents     []classifier.Intent   `json:"intents"`
	Complexity  classifier.Complexity `json:"complexity"`
	Delay       time.Duration         `json:"delay"`
	Suggestions []string              `json:"suggestions,omitempty"`
}

// Orchestrator runs a turn: classify, generate, wait, persist, publish
type Orchestrator struct {
	classifier *classifier.Classifier
	responder  Responder
	sessions   Sessions
	publisher  Publisher
	sleeper    Sleeper
	cfg        config.ChatConfig
	logger     *logrus.Entry

	now   func() time.Time
	newID func() string

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithSleeper replaces the timer based sleeper
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleeper = s }
}

// WithPublisher sets where delivered turns are announced
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithClock replaces time.Now for message timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the uuid generator for message ids
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// NewOrchestrator wires a conversation orchestrator. sessions may be nil, in
// which case no turn is persisted.
func NewOrchestrator(cfg config.ChatConfig, cls *classifier.Classifier, resp Responder, sessions Sessions, logger *logrus.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: cls,
		responder:  resp,
		sessions:   sessions,
		publisher:  messaging.NopPublisher{},
		sleeper:    TimerSleeper{},
		cfg:        cfg,
		logger:     logger.WithField("component", "chat"),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
		locks:      make(map[string]*sessionLock),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// HandleTurn answers one user message. Generation failures never escape;
// they are delivered as an apology. Only an empty message is an error.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	if req.SessionID != "" {
		unlock := o.lockSession(req.SessionID)
		defer unlock()
	}

	start := o.now()
	userMsg := models.ChatMessage{
		ID:        o.newID(),
		Text:      text,
		IsBot:     false,
		Timestamp: start.UTC(),
	}

	classification := o.classifier.Classify(text)
	complexity := o.classifier.QueryComplexity(text)

	log := o.logger.WithFields(logrus.Fields{
		"session_id": req.SessionID,
		"intents":    classification.Intents,
		"complexity": complexity,
	})
	log.Debug("Classified query")

	reply := o.generate(ctx, text, classification, log)

	var delay time.Duration
	if o.cfg.SimulateDelay {
		delay = ThinkingDelay(text, complexity, o.cfg.MinDelay, o.cfg.MaxDelay)
		o.sleeper.Sleep(ctx, delay)
	}

	rendered := responder.Render(reply)
	botMsg := models.ChatMessage{
		ID:        o.newID(),
		Text:      rendered,
		IsBot:     true,
		Timestamp: o.now().UTC(),
	}

	result := &TurnResult{
		SessionID:   req.SessionID,
		UserMessage: userMsg,
		BotMessage:  botMsg,
		Reply: TurnReply{
			Kind:       reply.Kind,
			Text:       rendered,
			Data:       reply.Payload,
			Sources:    reply.Sources,
			Confidence: reply.Confidence,
		},
		Intents:     classification.Intents,
		Complexity:  complexity,
		Delay:       delay,
		Suggestions: o.classifier.GenerateSuggestions(text),
	}

	userID := o.persist(ctx, result, log)
	o.publish(ctx, result, userID, start, log)

	return result, nil
}

// generate runs the responder, converting errors and panics into the apology
func (o *Orchestrator) generate(ctx context.Context, text string, c classifier.Classification, log *logrus.Entry) (reply responder.Reply) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Reply generation panicked")
			reply = apology()
		}
	}()

	reply, err := o.responder.Respond(ctx, text, c)
	if err != nil {
		log.WithError(err).Warn("Failed to generate reply")
		return apology()
	}
	return reply
}

func apology() responder.Reply {
	return responder.Reply{Kind: responder.KindApology, Confidence: apologyConfidence}
}

// persist appends the turn to the logged-in user's session, creating one
// seeded with the greeting when needed. Returns the user id, if any.
func (o *Orchestrator) persist(ctx context.Context, result *TurnResult, log *logrus.Entry) string {
	if o.sessions == nil {
		return ""
	}

	user, err := o.sessions.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNotAuthenticated) {
			log.WithError(err).Warn("Failed to load current user")
		}
		return ""
	}

	if err := o.appendTurn(ctx, user.ID, result); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Failed to persist turn")
	}
	return user.ID
}

func (o *Orchestrator) appendTurn(ctx context.Context, userID string, result *TurnResult) error {
	var current *models.ChatSession
	if result.SessionID != "" {
		s, err := o.sessions.GetSession(ctx, userID, result.SessionID)
		switch {
		case err == nil:
			current = s
		case errors.Is(err, session.ErrSessionNotFound):
			o.logger.WithField("session_id", result.SessionID).Info("Unknown session, starting a new one")
		default:
			return fmt.Errorf("failed to load session: %w", err)
		}
	}

	if current == nil {
		greeting := models.ChatMessage{
			ID:        o.newID(),
			Text:      responder.Greeting,
			IsBot:     true,
			Timestamp: result.UserMessage.Timestamp,
		}
		created, err := o.sessions.CreateSession(ctx, userID, &greeting)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		current = created
	}

	messages := make([]models.ChatMessage, 0, len(current.Messages)+2)
	messages = append(messages, current.Messages...)
	messages = append(messages, result.UserMessage, result.BotMessage)

	if _, err := o.sessions.UpdateSession(ctx, userID, current.ID, messages); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	result.SessionID = current.ID
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, result *TurnResult, userID string, start time.Time, log *logrus.Entry) {
	intents := make([]string, len(result.Intents))
	for i, intent := range result.Intents {
		intents[i] = string(intent)
	}

	event := models.TurnEvent{
		SessionID:  result.SessionID,
		UserID:     userID,
		Query:      result.UserMessage.Text,
		Intents:    intents,
		Complexity: string(result.Complexity),
		ReplyKind:  string(result.Reply.Kind),
		Confidence: result.Reply.Confidence,
		Failed:     result.Reply.Kind == responder.KindApology,
		DurationMS: o.now().Sub(start).Milliseconds(),
		Timestamp:  result.BotMessage.Timestamp,
	}

	if err := o.publisher.PublishTurn(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish turn event")
	}
}

// lockSession serializes turns of one session; different sessions proceed
// concurrently
func (o *Orchestrator) lockSession(id string) func() {
	o.locksMu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &sessionLock{}
		o.locks[id] = l
	}
	l.refs++
	o.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		o.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, id)
		}
		o.locksMu.Unlock()
	}
}
