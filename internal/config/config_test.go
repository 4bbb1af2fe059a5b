package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_MODEL", "TAVILY_API_KEY",
		"INSIGHTBOT_PROVIDER", "INSIGHTBOT_USER", "INSIGHTBOT_SESSIONS_DB",
		"INSIGHTBOT_HISTORY_DB", "INSIGHTBOT_PRODUCTS_DB", "INSIGHTBOT_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("default provider = %q", cfg.Provider)
	}
	if cfg.MaxIterations != 6 {
		t.Errorf("default max_iterations = %d", cfg.MaxIterations)
	}
	if len(cfg.Web.SearchDomains) != 3 {
		t.Errorf("default search domains = %v", cfg.Web.SearchDomains)
	}
	if cfg.Databases.SessionsPath == "" || cfg.Databases.HistoryPath == "" {
		t.Errorf("database paths not defaulted: %+v", cfg.Databases)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
provider: anthropic
model: claude-sonnet-4-20250514
user: fady
max_iterations: 10
providers:
  anthropic:
    api_key: sk-file-key
web:
  search_api_key: tvly-key
  search_domains: [used-line.com]
databases:
  sessions_path: /tmp/s.db
  history_path: /tmp/h.db
  products_path: /tmp/p.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	if cfg.User != "fady" {
		t.Errorf("user = %q", cfg.User)
	}
	if cfg.MaxIterations != 10 {
		t.Errorf("max_iterations = %d", cfg.MaxIterations)
	}
	if got := cfg.GetProviderConfig("anthropic").APIKey; got != "sk-file-key" {
		t.Errorf("api key = %q", got)
	}
	if len(cfg.Web.SearchDomains) != 1 || cfg.Web.SearchDomains[0] != "used-line.com" {
		t.Errorf("search domains = %v", cfg.Web.SearchDomains)
	}
	if cfg.Databases.ProductsPath != "/tmp/p.db" {
		t.Errorf("products path = %q", cfg.Databases.ProductsPath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
providers:
  openai:
    api_key: from-file
databases:
  sessions_path: /tmp/s.db
  history_path: /tmp/h.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("INSIGHTBOT_USER", "envuser")
	t.Setenv("INSIGHTBOT_SESSIONS_DB", "/tmp/env-sessions.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetProviderConfig("openai").APIKey; got != "from-env" {
		t.Errorf("api key = %q, want env value", got)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.User != "envuser" {
		t.Errorf("user = %q", cfg.User)
	}
	if cfg.Databases.SessionsPath != "/tmp/env-sessions.db" {
		t.Errorf("sessions path = %q", cfg.Databases.SessionsPath)
	}
}

func TestGetProviderConfigUnknown(t *testing.T) {
	cfg := DefaultConfig()
	pc := cfg.GetProviderConfig("nope")
	if pc == nil || pc.APIKey != "" {
		t.Errorf("unknown provider should return an empty config, got %+v", pc)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [not closed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for invalid yaml")
	}
}
