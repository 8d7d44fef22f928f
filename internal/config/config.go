// Package config loads server settings from environment variables, with
// optional overrides from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

type Config struct {
	// Server settings
	Port        string
	FrontendURL string

	// Storage settings
	DataDir        string
	StorageBackend string
	SQLitePath     string

	// Hosted backends
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModels    []string
	AnthropicAPIKey string
	AnthropicModels []string

	// Local runtime
	OllamaHost string

	// Generation settings
	DefaultModel  string
	Temperature   float64
	MaxTokens     int
	HistoryBudget int
}

// Load reads configuration from the environment and an optional .env
// file, then validates it. Validation reports every problem at once.
func Load() (*Config, error) {
	// Missing .env is fine; the environment alone is a valid source.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8100"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		DataDir:        getEnv("DATA_DIR", "data"),
		StorageBackend: getEnv("STORAGE_BACKEND", StorageJSON),
		SQLitePath:     getEnv("SQLITE_PATH", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIModels:    getEnvList("OPENAI_MODELS", "gpt-4,gpt-4-turbo,gpt-3.5-turbo"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModels: getEnvList("ANTHROPIC_MODELS", "claude-3-opus-20240229,claude-3-sonnet-20240229"),

		OllamaHost: getEnv("OLLAMA_HOST", ""),

		DefaultModel:  getEnv("DEFAULT_MODEL", ""),
		Temperature:   getEnvFloat("TEMPERATURE", 0.7),
		MaxTokens:     getEnvInt("MAX_TOKENS", 2000),
		HistoryBudget: getEnvInt("HISTORY_TOKEN_BUDGET", 6000),
	}

	if cfg.SQLitePath == "" {
		cfg.SQLitePath = cfg.DataDir + "/chats.db"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate collects every configuration problem rather than stopping at
// the first.
func (c *Config) Validate() error {
	var err error

	if c.StorageBackend != StorageJSON && c.StorageBackend != StorageSQLite {
		err = multierr.Append(err, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q",
			StorageJSON, StorageSQLite, c.StorageBackend))
	}
	if c.OpenAIAPIKey == "" && c.AnthropicAPIKey == "" && c.OllamaHost == "" {
		err = multierr.Append(err, fmt.Errorf("no model backend configured: set OPENAI_API_KEY, ANTHROPIC_API_KEY or OLLAMA_HOST"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		err = multierr.Append(err, fmt.Errorf("TEMPERATURE must be between 0 and 2, got %g", c.Temperature))
	}
	if c.MaxTokens <= 0 {
		err = multierr.Append(err, fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens))
	}

	return err
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}
