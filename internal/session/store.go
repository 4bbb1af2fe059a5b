package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insightbot/insightbot/internal/logger"
	"github.com/insightbot/insightbot/internal/storage"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    session_id    TEXT PRIMARY KEY,
    user_login    TEXT NOT NULL,
    session_title TEXT,
    created_at    TEXT NOT NULL,
    last_updated  TEXT NOT NULL,
    message_count INTEGER DEFAULT 0,
    is_active     INTEGER DEFAULT 1
);
CREATE TABLE IF NOT EXISTS chat_messages (
    message_id    INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    TEXT NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
    role          TEXT NOT NULL,
    content       TEXT NOT NULL,
    timestamp     TEXT NOT NULL,
    message_index INTEGER NOT NULL,
    UNIQUE(session_id, message_index)
);
CREATE INDEX IF NOT EXISTS idx_session_user ON chat_sessions(user_login);
CREATE INDEX IF NOT EXISTS idx_session_updated ON chat_sessions(last_updated);
CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON chat_messages(timestamp);
`

// Store persists sessions and messages in one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sessions database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session for owner and returns its id.
// An empty title gets a timestamp default. On storage failure a fresh,
// un-persisted id is returned so the caller's turn is never blocked; the
// failure is logged.
func (s *Store) CreateSession(ctx context.Context, owner, title string) string {
	id := uuid.NewString()
	now := time.Now().UTC()
	if title == "" {
		title = "Chat Session - " + now.Format("2006-01-02 15:04")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions
			(session_id, user_login, session_title, created_at, last_updated, message_count, is_active)
		VALUES (?, ?, ?, ?, ?, 0, 1)`,
		id, owner, title, formatTime(now), formatTime(now),
	)
	if err != nil {
		logger.L.Error("create session failed; using transient session", "owner", owner, "error", err)
		return uuid.NewString()
	}
	return id
}

// ListSessions returns owner's active sessions, newest last_updated first.
func (s *Store) ListSessions(ctx context.Context, owner string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_login, session_title, created_at, last_updated, message_count, is_active
		FROM chat_sessions
		WHERE user_login = ? AND is_active = 1
		ORDER BY last_updated DESC
		LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AllSessions returns every session owned by owner, archived included,
// newest last_updated first. Listing surfaces show active sessions only;
// this is for id resolution, where delete and export must still reach an
// archived session.
func (s *Store) AllSessions(ctx context.Context, owner string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_login, session_title, created_at, last_updated, message_count, is_active
		FROM chat_sessions
		WHERE user_login = ?
		ORDER BY last_updated DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list all sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Get returns the session with the given id. A missing session is reported
// via ok=false, not an error.
func (s *Store) Get(ctx context.Context, sessionID string) (Session, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_login, session_title, created_at, last_updated, message_count, is_active
		FROM chat_sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

// SaveMessage upserts the message at index for the session and, in the same
// transaction, recomputes message_count and bumps last_updated. Re-saving an
// existing index replaces that message's content.
func (s *Store) SaveMessage(ctx context.Context, sessionID, role, content string, index int) error {
	now := formatTime(time.Now().UTC())
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO chat_messages (session_id, role, content, timestamp, message_index)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session_id, message_index)
			DO UPDATE SET role = excluded.role, content = excluded.content, timestamp = excluded.timestamp`,
			sessionID, role, content, now, index,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return bumpSessionStats(tx, sessionID, now)
	})
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// ReplaceMessages deletes every message of the session and re-inserts msgs
// with fresh contiguous indices starting at 0. This is the reconciliation
// path when the in-memory transcript is the source of truth.
func (s *Store) ReplaceMessages(ctx context.Context, sessionID string, msgs []Message) error {
	now := formatTime(time.Now().UTC())
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM chat_messages WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		for i, m := range msgs {
			ts := m.Timestamp
			if ts.IsZero() {
				ts = time.Now().UTC()
			}
			if _, err := tx.Exec(`
				INSERT INTO chat_messages (session_id, role, content, timestamp, message_index)
				VALUES (?, ?, ?, ?, ?)`,
				sessionID, m.Role, m.Content, formatTime(ts), i,
			); err != nil {
				return fmt.Errorf("insert message %d: %w", i, err)
			}
		}
		return bumpSessionStats(tx, sessionID, now)
	})
	if err != nil {
		return fmt.Errorf("replace messages: %w", err)
	}
	return nil
}

// LoadMessages returns the session's messages in ascending index order,
// which is the canonical replay order. A missing session yields an empty
// slice.
func (s *Store) LoadMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, timestamp, message_index
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY message_index ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.Role, &m.Content, &ts, &m.Index); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = parseTime(ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Rename updates the session's title and bumps last_updated.
func (s *Store) Rename(ctx context.Context, sessionID, newTitle string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET session_title = ?, last_updated = ?
		WHERE session_id = ?`,
		newTitle, formatTime(time.Now().UTC()), sessionID)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}

// Archive marks the session inactive without deleting it. Only the owner may
// archive; anyone else gets false and no mutation.
func (s *Store) Archive(ctx context.Context, sessionID, owner string) bool {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET is_active = 0, last_updated = ?
		WHERE session_id = ? AND user_login = ?`,
		formatTime(time.Now().UTC()), sessionID, owner)
	if err != nil {
		logger.L.Error("archive session failed", "session", sessionID, "error", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// Delete removes the session and all its messages in one transaction.
// It fails closed: a caller who is not the stored owner gets false and no
// rows are touched.
func (s *Store) Delete(ctx context.Context, sessionID, owner string) bool {
	var deleted bool
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var storedOwner string
		err := tx.QueryRow(
			"SELECT user_login FROM chat_sessions WHERE session_id = ?", sessionID,
		).Scan(&storedOwner)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("check owner: %w", err)
		}
		if storedOwner != owner {
			return nil
		}

		// Messages go with the session via ON DELETE CASCADE.
		if _, err := tx.Exec("DELETE FROM chat_sessions WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		logger.L.Error("delete session failed", "session", sessionID, "error", err)
		return false
	}
	return deleted
}

// Statistics aggregates over owner's active sessions.
func (s *Store) Statistics(ctx context.Context, owner string) (Statistics, error) {
	var stats Statistics

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_sessions
		WHERE user_login = ? AND is_active = 1`, owner).Scan(&stats.TotalSessions)
	if err != nil {
		return Statistics{}, fmt.Errorf("count sessions: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_messages cm
		JOIN chat_sessions cs ON cm.session_id = cs.session_id
		WHERE cs.user_login = ? AND cs.is_active = 1`, owner).Scan(&stats.TotalMessages)
	if err != nil {
		return Statistics{}, fmt.Errorf("count messages: %w", err)
	}

	cutoff := formatTime(time.Now().UTC().AddDate(0, 0, -7))
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_sessions
		WHERE user_login = ? AND is_active = 1 AND last_updated >= ?`, owner, cutoff).Scan(&stats.RecentSessions)
	if err != nil {
		return Statistics{}, fmt.Errorf("count recent sessions: %w", err)
	}

	return stats, nil
}

// bumpSessionStats recomputes message_count from the actual rows and bumps
// last_updated. Must run inside the same transaction as the message write.
func bumpSessionStats(tx *sql.Tx, sessionID, now string) error {
	if _, err := tx.Exec(`
		UPDATE chat_sessions
		SET last_updated = ?,
		    message_count = (SELECT COUNT(*) FROM chat_messages WHERE session_id = ?)
		WHERE session_id = ?`,
		now, sessionID, sessionID,
	); err != nil {
		return fmt.Errorf("update session stats: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var created, updated string
	var active int
	err := row.Scan(&sess.ID, &sess.Owner, &sess.Title, &created, &updated, &sess.MessageCount, &active)
	if err != nil {
		return Session{}, err
	}
	sess.CreatedAt = parseTime(created)
	sess.LastUpdated = parseTime(updated)
	sess.Active = active != 0
	return sess, nil
}

// timeLayout always prints the full nanosecond fraction. RFC3339Nano trims
// trailing zeros, and a trimmed ".12Z" sorts after ".123Z" as a string, so
// only the fixed-width form keeps SQL string comparison chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
