package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/insightbot/insightbot/internal/storage"
)

const (
	maxSingleColumnRows = 25
	maxMultiColumnRows  = 15
)

var (
	selectPriceRe    = regexp.MustCompile(`(?i)^SELECT\s+Price\b`)
	selectDistinctRe = regexp.MustCompile(`(?i)^SELECT\s+DISTINCT\b`)
	selectLeadRe     = regexp.MustCompile(`(?i)^SELECT\s+`)
	whereRe          = regexp.MustCompile(`(?i)\bWHERE\b`)
)

// SQLQueryTool executes read-only SQL against the products database
// (table quotesresponses: QID, CompanyName, Price, EQBrand, EQModel).
type SQLQueryTool struct {
	db *sql.DB
}

// NewSQLQueryTool opens the products database at dbPath.
func NewSQLQueryTool(dbPath string) (*SQLQueryTool, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLQueryTool{db: db}, nil
}

func (t *SQLQueryTool) Close() error { return t.db.Close() }

func (t *SQLQueryTool) Name() string     { return "execute_sql_query" }
func (t *SQLQueryTool) IsReadOnly() bool { return true }

func (t *SQLQueryTool) Description() string {
	return `Execute a SQL SELECT query against the products database and return the results.
Call this after each generated SQL query. Input must be a syntactically valid SELECT statement.`
}

func (t *SQLQueryTool) Parameters() map[string]any {
	return map[string]any{
		"sql_query": map[string]any{
			"type":        "string",
			"description": "The SQL SELECT query to execute",
		},
	}
}

func (t *SQLQueryTool) Execute(ctx context.Context, params json.RawMessage) (ToolResult, error) {
	var p struct {
		SQLQuery string `json:"sql_query"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ToolResult{}, fmt.Errorf("invalid params: %w", err)
	}
	query := strings.TrimSpace(p.SQLQuery)
	if query == "" {
		return ToolResult{}, fmt.Errorf("sql_query is required")
	}
	if !selectLeadRe.MatchString(query) {
		return ToolResult{Content: "Only SELECT queries are allowed.", IsError: true}, nil
	}

	isPriceQuery := selectPriceRe.MatchString(query)
	query = rewritePriceQuery(query)

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Query failed: %v", err), IsError: true}, nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Query failed: %v", err), IsError: true}, nil
	}

	var table [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ToolResult{Content: fmt.Sprintf("Scan failed: %v", err), IsError: true}, nil
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		table = append(table, row)
	}
	if err := rows.Err(); err != nil {
		return ToolResult{Content: fmt.Sprintf("Query failed: %v", err), IsError: true}, nil
	}

	return ToolResult{Content: formatResult(table, len(cols), isPriceQuery)}, nil
}

// rewritePriceQuery hardens bare price listings: SELECT Price queries get
// DISTINCT and a Price > 0 guard so zero-placeholder rows never reach the
// model.
func rewritePriceQuery(query string) string {
	if !selectPriceRe.MatchString(query) {
		return query
	}
	if !selectDistinctRe.MatchString(query) {
		query = selectLeadRe.ReplaceAllString(query, "SELECT DISTINCT ")
	}
	if loc := whereRe.FindStringIndex(query); loc != nil {
		query = query[:loc[0]] + "WHERE Price > 0 AND" + query[loc[1]:]
	} else {
		query = strings.Replace(query, "FROM quotesresponses", "FROM quotesresponses WHERE Price > 0", 1)
	}
	return query
}

func formatResult(table [][]string, cols int, isPriceQuery bool) string {
	if len(table) == 0 {
		return "No results found."
	}

	var lines []string
	if cols == 1 {
		suffix := ""
		if isPriceQuery {
			suffix = "$"
			lines = append(lines, fmt.Sprintf("Found %d unique non-zero prices:", len(table)))
		}
		for i, row := range table {
			if i >= maxSingleColumnRows {
				lines = append(lines, fmt.Sprintf("... and %d more", len(table)-maxSingleColumnRows))
				break
			}
			lines = append(lines, "• "+row[0]+suffix)
		}
		return strings.Join(lines, "\n")
	}

	for i, row := range table {
		if i >= maxMultiColumnRows {
			lines = append(lines, fmt.Sprintf("... and %d more rows", len(table)-maxMultiColumnRows))
			break
		}
		lines = append(lines, strings.Join(row, " | "))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		// Whole-number prices print without a decimal tail.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// QueryAsList runs a query and returns the first column of every row as a
// cleaned list, used to seed the system prompt with real company and brand
// names. Failures yield an empty list.
func (t *SQLQueryTool) QueryAsList(ctx context.Context, query string) []string {
	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return out
		}
		if s := strings.TrimSpace(v.String); s != "" {
			out = append(out, s)
		}
	}
	return out
}
