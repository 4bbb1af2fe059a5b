// Package session persists chat sessions and their ordered messages in a
// SQLite database. The store is safe for concurrent use from multiple
// request handlers within one process; every multi-statement write runs in a
// single transaction so message_count never drifts from the actual rows.
package session

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is one persistent chat conversation.
type Session struct {
	ID           string
	Owner        string
	Title        string
	CreatedAt    time.Time
	LastUpdated  time.Time
	MessageCount int
	Active       bool
}

// Message is a single turn within a session. Index is the zero-based
// position that defines the conversation's replay order.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Index     int       `json:"message_index"`
}

// Statistics summarizes a user's active sessions.
type Statistics struct {
	TotalSessions  int
	TotalMessages  int
	RecentSessions int // updated within the last 7 days
}
