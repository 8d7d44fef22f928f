package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "localhost:11434")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8100" {
		t.Errorf("Port = %q, want 8100", cfg.Port)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.StorageBackend != StorageJSON {
		t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, StorageJSON)
	}
	if cfg.SQLitePath != "data/chats.db" {
		t.Errorf("SQLitePath = %q, want data/chats.db", cfg.SQLitePath)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %g, want 0.7", cfg.Temperature)
	}
	if cfg.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want 2000", cfg.MaxTokens)
	}
	if len(cfg.OpenAIModels) != 3 || cfg.OpenAIModels[0] != "gpt-4" {
		t.Errorf("OpenAIModels = %v", cfg.OpenAIModels)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/var/lib/chatd/chats.db")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODELS", "gpt-4, gpt-4o ,")
	t.Setenv("TEMPERATURE", "0.2")
	t.Setenv("MAX_TOKENS", "512")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.StorageBackend != StorageSQLite || cfg.SQLitePath != "/var/lib/chatd/chats.db" {
		t.Errorf("storage = %q %q", cfg.StorageBackend, cfg.SQLitePath)
	}
	if len(cfg.OpenAIModels) != 2 || cfg.OpenAIModels[1] != "gpt-4o" {
		t.Errorf("OpenAIModels = %v", cfg.OpenAIModels)
	}
	if cfg.Temperature != 0.2 || cfg.MaxTokens != 512 {
		t.Errorf("generation settings = %g %d", cfg.Temperature, cfg.MaxTokens)
	}
}

func TestValidateNoBackend(t *testing.T) {
	cfg := &Config{
		StorageBackend: StorageJSON,
		Temperature:    0.7,
		MaxTokens:      2000,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error with no backend configured")
	}
	if !strings.Contains(err.Error(), "no model backend configured") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := &Config{
		StorageBackend: "postgres",
		Temperature:    5,
		MaxTokens:      0,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"STORAGE_BACKEND", "no model backend", "TEMPERATURE", "MAX_TOKENS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateOK(t *testing.T) {
	cfg := &Config{
		StorageBackend: StorageSQLite,
		OllamaHost:     "localhost:11434",
		Temperature:    1.0,
		MaxTokens:      1000,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}
