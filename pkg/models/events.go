package models

import "time"

// TurnEvent describes one delivered chat turn
type TurnEvent struct {
	SessionID  string    `json:"session_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Query      string    `json:"query"`
	Intents    []string  `json:"intents"`
	Complexity string    `json:"complexity"`
	ReplyKind  string    `json:"reply_kind"`
	Confidence float64   `json:"confidence"`
	Failed     bool      `json:"failed"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
