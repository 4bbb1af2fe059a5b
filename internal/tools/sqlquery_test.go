package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func newTestSQLTool(t *testing.T) *SQLQueryTool {
	t.Helper()
	tool, err := NewSQLQueryTool(filepath.Join(t.TempDir(), "products.db"))
	if err != nil {
		t.Fatalf("NewSQLQueryTool: %v", err)
	}
	t.Cleanup(func() { tool.Close() })

	_, err = tool.db.Exec(`
		CREATE TABLE quotesresponses (
			QID INTEGER PRIMARY KEY,
			CompanyName TEXT,
			Price REAL,
			EQBrand TEXT,
			EQModel TEXT
		);
		INSERT INTO quotesresponses (CompanyName, Price, EQBrand, EQModel) VALUES
			('TestUnlimited', 1250, 'Keysight', 'DMM6500'),
			('TestUnlimited', 1250, 'Keysight', 'DMM6500'),
			('UsedLine', 0, 'Keysight', 'DMM6500'),
			('UsedLine', 980.5, 'Keysight', 'DMM6500'),
			('eBay Seller', 2400, 'Tektronix', 'MSO44');`)
	if err != nil {
		t.Fatal(err)
	}
	return tool
}

func TestRewritePriceQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"adds distinct and guard",
			"SELECT Price FROM quotesresponses",
			"SELECT DISTINCT Price FROM quotesresponses WHERE Price > 0",
		},
		{
			"existing where gets guard prepended",
			"SELECT Price FROM quotesresponses WHERE EQModel = 'DMM6500'",
			"SELECT DISTINCT Price FROM quotesresponses WHERE Price > 0 AND EQModel = 'DMM6500'",
		},
		{
			"distinct not duplicated",
			"SELECT DISTINCT Price FROM quotesresponses",
			"SELECT DISTINCT Price FROM quotesresponses WHERE Price > 0",
		},
		{
			"non-price query untouched",
			"SELECT CompanyName FROM quotesresponses",
			"SELECT CompanyName FROM quotesresponses",
		},
		{
			"price as later column untouched",
			"SELECT CompanyName, Price FROM quotesresponses",
			"SELECT CompanyName, Price FROM quotesresponses",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewritePriceQuery(tt.input); got != tt.want {
				t.Errorf("rewritePriceQuery(%q)\n got  %q\n want %q", tt.input, got, tt.want)
			}
		})
	}
}

func execSQL(t *testing.T, tool *SQLQueryTool, query string) ToolResult {
	t.Helper()
	params, _ := json.Marshal(map[string]string{"sql_query": query})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute(%q): %v", query, err)
	}
	return res
}

func TestSQLQueryPriceListingExcludesZeros(t *testing.T) {
	tool := newTestSQLTool(t)

	res := execSQL(t, tool, "SELECT Price FROM quotesresponses WHERE EQModel = 'DMM6500'")
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content)
	}
	if strings.Contains(res.Content, "• 0$") {
		t.Errorf("zero prices must be excluded:\n%s", res.Content)
	}
	// Duplicate 1250 collapses under DISTINCT.
	if n := strings.Count(res.Content, "• 1250$"); n != 1 {
		t.Errorf("1250 appears %d times, want 1:\n%s", n, res.Content)
	}
	if !strings.Contains(res.Content, "• 980.5$") {
		t.Errorf("missing 980.5:\n%s", res.Content)
	}
}

func TestSQLQueryMultiColumnRows(t *testing.T) {
	tool := newTestSQLTool(t)

	res := execSQL(t, tool, "SELECT CompanyName, Price FROM quotesresponses WHERE EQBrand = 'Tektronix'")
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content)
	}
	if !strings.Contains(res.Content, "eBay Seller | 2400") {
		t.Errorf("row formatting:\n%s", res.Content)
	}
}

func TestSQLQueryRejectsNonSelect(t *testing.T) {
	tool := newTestSQLTool(t)

	res := execSQL(t, tool, "DELETE FROM quotesresponses")
	if !res.IsError {
		t.Fatalf("mutation must be rejected, got: %s", res.Content)
	}
}

func TestSQLQueryEmptyResult(t *testing.T) {
	tool := newTestSQLTool(t)

	res := execSQL(t, tool, "SELECT CompanyName FROM quotesresponses WHERE EQBrand = 'Rohde'")
	if res.Content != "No results found." {
		t.Errorf("content = %q", res.Content)
	}
}

func TestQueryAsList(t *testing.T) {
	tool := newTestSQLTool(t)

	brands := tool.QueryAsList(context.Background(), "SELECT DISTINCT EQBrand FROM quotesresponses")
	if len(brands) != 2 {
		t.Fatalf("brands = %v, want 2 entries", brands)
	}

	// Failure degrades to empty, never an error.
	if got := tool.QueryAsList(context.Background(), "SELECT nope FROM missing"); len(got) != 0 {
		t.Errorf("bad query = %v, want empty", got)
	}
}
