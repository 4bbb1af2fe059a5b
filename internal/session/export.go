package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ExportEnvelope is the JSON document produced by Export. The message slice
// round-trips: re-parsing yields the session's messages in replay order.
type ExportEnvelope struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	ExportedAt   time.Time `json:"exported_at"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

// Export serializes the full session transcript with a metadata envelope.
// A session with no messages exports as (nil, nil) so callers can tell
// "nothing to export" from a failure.
func (s *Store) Export(ctx context.Context, sessionID string) ([]byte, error) {
	msgs, err := s.LoadMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	env := ExportEnvelope{
		SessionID:    sessionID,
		Title:        "Unknown Session",
		ExportedAt:   time.Now().UTC(),
		MessageCount: len(msgs),
		Messages:     msgs,
	}
	if sess, ok, err := s.Get(ctx, sessionID); err == nil && ok {
		env.Title = sess.Title
		env.CreatedAt = sess.CreatedAt
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session export: %w", err)
	}
	return data, nil
}
