package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/insightbot/insightbot/internal/insight"
	"github.com/insightbot/insightbot/internal/logger"
	"github.com/insightbot/insightbot/internal/storage"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS search_history (
    record_id     INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     TEXT NOT NULL,
    user_query    TEXT NOT NULL,
    product_brand TEXT DEFAULT '',
    product_model TEXT DEFAULT '',
    price_details TEXT DEFAULT '[]',
    vendors       TEXT DEFAULT '[]',
    verified_urls TEXT DEFAULT '[]',
    source        TEXT DEFAULT 'database',
    notes         TEXT DEFAULT '',
    session_id    TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_history_timestamp ON search_history(timestamp);
CREATE INDEX IF NOT EXISTS idx_history_brand ON search_history(product_brand);
CREATE INDEX IF NOT EXISTS idx_history_model ON search_history(product_model);
CREATE INDEX IF NOT EXISTS idx_history_session ON search_history(session_id);
`

// Store persists the search-history log in its own SQLite file. It owns the
// file and schema exclusively; nothing else writes to these tables.
type Store struct {
	db        *sql.DB
	extractor insight.Extractor
}

// Open opens (or creates) the history database at dbPath. The extractor is
// consulted on every LogSearch; pass nil to log without extraction.
func Open(dbPath string, extractor insight.Extractor) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}
	return &Store{db: db, extractor: extractor}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LogSearch extracts insights from the interaction and appends a record.
// Extraction failure is not fatal: the record is written with empty
// structured fields rather than dropped. Returns the new record id, or -1
// when the insert itself fails. Logging is best effort and must never abort
// the caller's chat turn.
func (s *Store) LogSearch(ctx context.Context, userQuery, agentResponse, sessionID string) int64 {
	var in insight.Insights
	if s.extractor != nil {
		var err error
		in, err = s.extractor.Extract(ctx, userQuery, agentResponse)
		if err != nil {
			logger.L.Warn("insight extraction failed; logging with empty fields", "error", err)
			in = insight.Insights{}
		}
	}

	source := SourceDatabase
	if len(in.VerifiedURLs) > 0 {
		source = SourceWeb
	}

	id, err := s.insertRecord(ctx, Record{
		Timestamp:    time.Now().UTC(),
		UserQuery:    userQuery,
		ProductBrand: in.ProductBrand,
		ProductModel: in.ProductModel,
		PriceDetails: in.PriceDetails,
		Vendors:      in.Vendors,
		VerifiedURLs: in.VerifiedURLs,
		Source:       source,
		Notes:        in.Notes,
		SessionID:    sessionID,
	})
	if err != nil {
		logger.L.Error("log search failed", "session", sessionID, "error", err)
		return -1
	}
	return id
}

func (s *Store) insertRecord(ctx context.Context, rec Record) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history
			(timestamp, user_query, product_brand, product_model,
			 price_details, vendors, verified_urls, source, notes, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(rec.Timestamp), rec.UserQuery, rec.ProductBrand, rec.ProductModel,
		marshalJSON(rec.PriceDetails), marshalJSON(rec.Vendors), marshalJSON(rec.VerifiedURLs),
		rec.Source, rec.Notes, rec.SessionID,
	)
	if err != nil {
		return -1, fmt.Errorf("insert history record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return -1, fmt.Errorf("history record id: %w", err)
	}
	return id, nil
}

// Search returns records matching the filter, newest first. The record id
// breaks timestamp ties so consecutive pages never skip or repeat a row.
func (s *Store) Search(ctx context.Context, f Filter) ([]Record, error) {
	query := `
		SELECT record_id, timestamp, user_query, product_brand, product_model,
		       price_details, vendors, verified_urls, source, notes, session_id
		FROM search_history
		WHERE 1=1`
	var args []any

	if f.Brand != "" {
		query += " AND product_brand LIKE ?"
		args = append(args, "%"+f.Brand+"%")
	}
	if f.Model != "" {
		query += " AND product_model LIKE ?"
		args = append(args, "%"+f.Model+"%")
	}
	if !f.DateFrom.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, formatTime(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, formatTime(f.DateTo))
	}
	if f.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, f.SessionID)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY timestamp DESC, record_id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Statistics aggregates over the whole log.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM search_history").Scan(&stats.TotalSearches)
	if err != nil {
		return Statistics{}, fmt.Errorf("count searches: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT product_brand) FROM search_history
		WHERE product_brand != ''`).Scan(&stats.UniqueBrands)
	if err != nil {
		return Statistics{}, fmt.Errorf("count brands: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM search_history
		WHERE price_details != '[]' AND price_details != '' AND price_details IS NOT NULL`).
		Scan(&stats.SearchesWithPrices)
	if err != nil {
		return Statistics{}, fmt.Errorf("count priced searches: %w", err)
	}

	cutoff := formatTime(time.Now().UTC().AddDate(0, 0, -7))
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM search_history WHERE timestamp >= ?", cutoff).
		Scan(&stats.RecentSearches)
	if err != nil {
		return Statistics{}, fmt.Errorf("count recent searches: %w", err)
	}

	return stats, nil
}

// Clear deletes history. daysToKeep < 0 removes everything; otherwise only
// rows older than the retention window go. Returns false on failure.
func (s *Store) Clear(ctx context.Context, daysToKeep int) bool {
	var err error
	if daysToKeep < 0 {
		_, err = s.db.ExecContext(ctx, "DELETE FROM search_history")
	} else {
		cutoff := formatTime(time.Now().UTC().AddDate(0, 0, -daysToKeep))
		_, err = s.db.ExecContext(ctx, "DELETE FROM search_history WHERE timestamp < ?", cutoff)
	}
	if err != nil {
		logger.L.Error("clear history failed", "error", err)
		return false
	}
	return true
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var ts, prices, vendors, urls string
	err := rows.Scan(&rec.RecordID, &ts, &rec.UserQuery, &rec.ProductBrand, &rec.ProductModel,
		&prices, &vendors, &urls, &rec.Source, &rec.Notes, &rec.SessionID)
	if err != nil {
		return Record{}, fmt.Errorf("scan history record: %w", err)
	}
	rec.Timestamp = parseTime(ts)
	// Malformed JSON columns degrade to empty collections, never an error.
	rec.PriceDetails = unmarshalOrEmpty[insight.PriceEntry](prices)
	rec.Vendors = unmarshalOrEmpty[string](vendors)
	rec.VerifiedURLs = unmarshalOrEmpty[string](urls)
	return rec, nil
}

// marshalJSON stores empty collections as "[]" so the column never holds
// SQL-visible "null" text.
func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}

func unmarshalOrEmpty[T any](raw string) []T {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
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
