// Package storage is the shared SQLite primitive underneath the session and
// history stores. Each store owns its own database file; this package only
// knows how to open one with the right pragmas and how to scope a transaction.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open creates (if needed) and opens the SQLite database at path.
// Pragmas: WAL for concurrent readers, a bounded busy timeout so writers
// waiting on a lock fail instead of hanging, and foreign key enforcement.
// busy_timeout and foreign_keys are per-connection settings, so they ride
// in the DSN where the driver replays them on every pooled connection; a
// plain Exec would configure only the connection it happened to run on.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return db, nil
}

// WithTx runs fn inside a transaction. The transaction is rolled back on
// error or panic and committed otherwise, so a multi-statement write either
// fully applies or leaves no trace.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
