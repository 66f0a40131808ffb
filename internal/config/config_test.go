package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.OpenAI.Model)
	}
	if cfg.Execution.MaxTurns != 15 || cfg.Execution.MaxAttempts != 3 {
		t.Errorf("unexpected execution defaults %+v", cfg.Execution)
	}
	if cfg.Docs.Concurrency != 20 {
		t.Errorf("docs concurrency = %d", cfg.Docs.Concurrency)
	}
	if cfg.Office.BaseURL != "http://localhost:8765" {
		t.Errorf("office base url = %q", cfg.Office.BaseURL)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
openai:
  model: local-model
  base_url: http://localhost:1234/v1
  timeout: 2m
office:
  base_url: http://10.0.0.5:8765
execution:
  max_turns: 30
  supervised: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.OpenAI.Model != "local-model" || cfg.OpenAI.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("unexpected openai config %+v", cfg.OpenAI)
	}
	if cfg.OpenAI.Timeout != 2*time.Minute {
		t.Errorf("timeout = %s", cfg.OpenAI.Timeout)
	}
	if cfg.Office.BaseURL != "http://10.0.0.5:8765" {
		t.Errorf("office base url = %q", cfg.Office.BaseURL)
	}
	if cfg.Execution.MaxTurns != 30 || !cfg.Execution.Supervised {
		t.Errorf("unexpected execution config %+v", cfg.Execution)
	}
	// Unset values keep their defaults.
	if cfg.Execution.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want default 3", cfg.Execution.MaxAttempts)
	}
}

func TestLoadFromPathExpandsEnvInAPIKey(t *testing.T) {
	t.Setenv("CLERK_TEST_KEY", "sk-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("openai:\n  api_key: ${CLERK_TEST_KEY}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.OpenAI.APIKey)
	}
}

func TestLoadUsesEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CLERK_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.OpenAI.Model)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.OpenAI.Model = "saved-model"
	cfg.Execution.MaxTurns = 42
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.OpenAI.Model != "saved-model" || loaded.Execution.MaxTurns != 42 {
		t.Errorf("unexpected loaded config %+v", loaded)
	}
}
