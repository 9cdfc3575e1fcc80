package history

import (
	"time"

	"github.com/xiaokk2024/mymanus1/llm"
)

// Session is one persisted conversation snapshot.
type Session struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Model     string    `json:"model"`
	BaseURL   string    `json:"base_url,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	Messages  []Message `json:"messages"`
}

// Metadata contains session metadata
type Metadata struct {
	Title      string   `json:"title"`
	Reports    []string `json:"reports,omitempty"`
	TokenCount int      `json:"token_count"`
}

// Message is a transcript message with the time it was saved. Tool-call
// arguments are stored as JSON strings, the wire format.
type Message struct {
	llm.Message
	Timestamp time.Time `json:"timestamp"`
}

// pointer records the most recently saved session.
type pointer struct {
	SessionID string    `json:"session_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionInfo provides summary information for session listing
type SessionInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  int       `json:"messages"`
	Model     string    `json:"model"`
}
