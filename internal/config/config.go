// Package config loads and manages insightbot configuration.
// Sources, highest priority first:
//  1. environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, LLM_MODEL,
//     TAVILY_API_KEY, INSIGHTBOT_USER, INSIGHTBOT_SESSIONS_DB, ...)
//  2. the file passed via --config
//  3. ~/.config/insightbot/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// WebConfig configures the web search tool.
type WebConfig struct {
	SearchAPIKey string `yaml:"search_api_key"`

	// SearchDomains restricts results to these sites. Empty = no restriction.
	SearchDomains []string `yaml:"search_domains"`
}

// DatabaseConfig points at the SQLite files the app uses.
type DatabaseConfig struct {
	// SessionsPath is the chat sessions database.
	SessionsPath string `yaml:"sessions_path"`

	// HistoryPath is the search history database.
	HistoryPath string `yaml:"history_path"`

	// ProductsPath is the read-only products database queried by the agent.
	// Empty disables the sql_query tool.
	ProductsPath string `yaml:"products_path"`
}

// Config is the complete insightbot configuration.
type Config struct {
	// Provider selects the LLM backend ("openai" or "anthropic").
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	Providers map[string]*ProviderConfig `yaml:"providers"`

	Web WebConfig `yaml:"web"`

	Databases DatabaseConfig `yaml:"databases"`

	// User is the login name sessions are owned by.
	User string `yaml:"user"`

	// MaxIterations bounds the agent tool-call loop per turn (default 6).
	MaxIterations int `yaml:"max_iterations"`

	// LogLevel: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:      "openai",
		Providers:     make(map[string]*ProviderConfig),
		User:          defaultUser(),
		MaxIterations: 6,
		LogLevel:      "info",
		Web: WebConfig{
			SearchDomains: []string{"used-line.com", "testunlimited.com", "ebay.com"},
		},
	}
}

// Load reads the config file and applies environment overrides.
// A missing file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "insightbot", "config.yaml")
		}
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	if err := applyDBDefaults(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GetProviderConfig returns the config for name, or an empty config.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return &ProviderConfig{}
}

// DataDir returns the default data directory (~/.local/share/insightbot).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "insightbot"), nil
}

// applyDBDefaults fills in database paths that the file/env left empty.
func applyDBDefaults(cfg *Config) error {
	if cfg.Databases.SessionsPath != "" && cfg.Databases.HistoryPath != "" {
		return nil
	}
	dir, err := DataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if cfg.Databases.SessionsPath == "" {
		cfg.Databases.SessionsPath = filepath.Join(dir, "chat_sessions.db")
	}
	if cfg.Databases.HistoryPath == "" {
		cfg.Databases.HistoryPath = filepath.Join(dir, "search_history.db")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setProviderKey := func(name, key string) {
		if cfg.Providers[name] == nil {
			cfg.Providers[name] = &ProviderConfig{}
		}
		cfg.Providers[name].APIKey = key
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		setProviderKey("openai", v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		setProviderKey("anthropic", v)
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		cfg.Web.SearchAPIKey = v
	}
	if v := os.Getenv("INSIGHTBOT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("INSIGHTBOT_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("INSIGHTBOT_SESSIONS_DB"); v != "" {
		cfg.Databases.SessionsPath = v
	}
	if v := os.Getenv("INSIGHTBOT_HISTORY_DB"); v != "" {
		cfg.Databases.HistoryPath = v
	}
	if v := os.Getenv("INSIGHTBOT_PRODUCTS_DB"); v != "" {
		cfg.Databases.ProductsPath = v
	}
	if v := os.Getenv("INSIGHTBOT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}
