package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/internal/storage"
	"github.com/cryptobuddy/pkg/models"
)

const (
	minPasswordLength = 6
	avatarURL         = "https://api.dicebear.com/7.x/avataaars/svg?seed=%s"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionNotFound    = errors.New("session not found")
)

// Store persists the current user and their chat sessions in a KV store
type Store struct {
	kv        storage.KV
	namespace string
	logger    *logrus.Entry

	now   func() time.Time
	newID func() string

	// Serializes read-modify-write cycles on the sessions list
	mu sync.Mutex
}

// Option customizes a Store
type Option func(*Store)

// WithClock replaces time.Now for joined/created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid generator
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates a session store over kv
func NewStore(kv storage.KV, namespace string, logger *logrus.Logger, opts ...Option) *Store {
	s := &Store{
		kv:        kv,
		namespace: namespace,
		logger:    logger.WithField("component", "session-store"),
		now:       time.Now,
		newID:     uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) userKey() string {
	return s.namespace + "_user"
}

func (s *Store) sessionsKey(userID string) string {
	return fmt.Sprintf("%s_sessions_%s", s.namespace, userID)
}

// Login accepts any non-empty email with a password of at least six
// characters. Logging in again with the stored email keeps the identity.
func (s *Store) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || utf8.RuneCountInString(password) < minPasswordLength {
		return nil, ErrInvalidCredentials
	}

	name := email
	if at := strings.Index(email, "@"); at >= 0 {
		name = email[:at]
	}

	return s.signIn(ctx, email, name)
}

// Register is Login with an explicit, non-blank display name
func (s *Store) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || utf8.RuneCountInString(password) < minPasswordLength {
		return nil, ErrInvalidCredentials
	}

	return s.signIn(ctx, email, name)
}

func (s *Store) signIn(ctx context.Context, email, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.currentUser(ctx); err == nil && strings.EqualFold(existing.Email, email) {
		if existing.Name != name {
			existing.Name = name
			if err := s.put(ctx, s.userKey(), existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	user := &models.User{
		ID:       s.newID(),
		Email:    email,
		Name:     name,
		Avatar:   fmt.Sprintf(avatarURL, email),
		JoinedAt: s.now().UTC(),
	}
	if err := s.put(ctx, s.userKey(), user); err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User signed in")
	return user, nil
}

// CurrentUser returns the stored user or ErrNotAuthenticated
func (s *Store) CurrentUser(ctx context.Context) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentUser(ctx)
}

func (s *Store) currentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	found, err := s.get(ctx, s.userKey(), &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotAuthenticated
	}
	return &user, nil
}

// Logout removes the user and every session they own
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.currentUser(ctx)
	if err != nil && !errors.Is(err, ErrNotAuthenticated) {
		return err
	}

	if user != nil {
		if err := s.kv.Delete(ctx, s.sessionsKey(user.ID)); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
	}
	if err := s.kv.Delete(ctx, s.userKey()); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if user != nil {
		s.logger.WithField("user_id", user.ID).Info("User logged out")
	}
	return nil
}

// LoadSessions returns the user's sessions, most recent first
func (s *Store) LoadSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadSessions(ctx, userID)
}

func (s *Store) loadSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	found, err := s.get(ctx, s.sessionsKey(userID), &sessions)
	if err != nil {
		return nil, err
	}
	if !found || sessions == nil {
		return []models.ChatSession{}, nil
	}
	return sessions, nil
}

// GetSession returns one session by id
func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == sessionID {
			return &sessions[i], nil
		}
	}
	return nil, ErrSessionNotFound
}

// CreateSession prepends a new session seeded with initial, if given
func (s *Store) CreateSession(ctx context.Context, userID string, initial *models.ChatMessage) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := models.ChatSession{
		ID:        s.newID(),
		Title:     models.DefaultSessionTitle,
		Messages:  []models.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if initial != nil {
		session.Messages = append(session.Messages, *initial)
		session.Title = models.SessionTitle(session.Messages, models.DefaultSessionTitle)
	}

	sessions = append([]models.ChatSession{session}, sessions...)
	if err := s.put(ctx, s.sessionsKey(userID), sessions); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": userID, "session_id": session.ID}).Debug("Created chat session")
	return &session, nil
}

// UpdateSession replaces the message list of a session and re-derives its
// title from the first non-bot message
func (s *Store) UpdateSession(ctx context.Context, userID, sessionID string, messages []models.ChatMessage) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range sessions {
		if sessions[i].ID != sessionID {
			continue
		}

		updated := make([]models.ChatMessage, len(messages))
		copy(updated, messages)

		sessions[i].Messages = updated
		sessions[i].UpdatedAt = s.now().UTC()
		sessions[i].Title = models.SessionTitle(updated, sessions[i].Title)

		if err := s.put(ctx, s.sessionsKey(userID), sessions); err != nil {
			return nil, err
		}
		session := sessions[i]
		return &session, nil
	}

	return nil, ErrSessionNotFound
}

// DeleteSession removes one session
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions(ctx, userID)
	if err != nil {
		return err
	}

	kept := sessions[:0]
	for _, session := range sessions {
		if session.ID != sessionID {
			kept = append(kept, session)
		}
	}
	if len(kept) == len(sessions) {
		return ErrSessionNotFound
	}

	return s.put(ctx, s.sessionsKey(userID), kept)
}

// get decodes key into dest. Malformed JSON is logged and the entry
// discarded so the caller starts from empty state.
func (s *Store) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Discarding malformed stored data")
		if err := s.kv.Delete(ctx, key); err != nil {
			return false, fmt.Errorf("failed to discard %s: %w", key, err)
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) put(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
