package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/insightbot/insightbot/internal/storage"
	"github.com/insightbot/insightbot/internal/tools"
)

func TestBuildSystemPromptSeedsSamples(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "products.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("open products db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE quotesresponses (QID INTEGER, CompanyName TEXT, Price REAL, EQBrand TEXT, EQModel TEXT);
		INSERT INTO quotesresponses VALUES
			(1, 'TestUnlimited', 1250.0, 'Keysight', 'DMM6500'),
			(2, 'UsedLine', 980.0, 'Tektronix', 'TBS1052C');`)
	db.Close()
	if err != nil {
		t.Fatalf("seed products db: %v", err)
	}

	sqlTool, err := tools.NewSQLQueryTool(dbPath)
	if err != nil {
		t.Fatalf("NewSQLQueryTool: %v", err)
	}
	defer sqlTool.Close()

	prompt := BuildSystemPrompt(context.Background(), sqlTool)

	for _, want := range []string{"quotesresponses", "TestUnlimited", "UsedLine", "Keysight", "Tektronix"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildSystemPromptWithoutProductsDB(t *testing.T) {
	prompt := BuildSystemPrompt(context.Background(), nil)
	if !strings.Contains(prompt, "Sample companies: None") {
		t.Errorf("nil tool should fall back to None, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "quotesresponses") {
		t.Errorf("schema description missing")
	}
}

func TestSampleListCapsLength(t *testing.T) {
	values := make([]string, 30)
	for i := range values {
		values[i] = "brand"
	}
	got := sampleList(values)
	if n := strings.Count(got, "brand"); n != maxPromptSamples {
		t.Errorf("sampleList kept %d entries, want %d", n, maxPromptSamples)
	}
}
