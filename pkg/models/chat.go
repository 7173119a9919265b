package models

import (
	"time"
)

// TitleMaxLength is the number of characters kept from the first user
// message when titling a session
const TitleMaxLength = 50

// DefaultSessionTitle is used until a session has a user message
const DefaultSessionTitle = "New Chat"

// ChatMessage is a single turn entry; never mutated after creation
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsBot     bool      `json:"isBot"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is a titled, ordered list of messages owned by one user
type ChatSession struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// User is the locally persisted identity of the person chatting
type User struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// TitleFromText truncates text to TitleMaxLength characters and appends an
// ellipsis when something was cut.
func TitleFromText(text string) string {
	runes := []rune(text)
	if len(runes) <= TitleMaxLength {
		return text
	}
	return string(runes[:TitleMaxLength]) + "..."
}

// SessionTitle derives a title from the first non-bot message, falling back
// to the given title when the session has none.
func SessionTitle(messages []ChatMessage, fallback string) string {
	for _, m := range messages {
		if !m.IsBot {
			return TitleFromText(m.Text)
		}
	}
	return fallback
}
