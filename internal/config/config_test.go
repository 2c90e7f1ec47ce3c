package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Provider != "openai" {
		t.Errorf("Default provider = %q, want %q", cfg.Provider, "openai")
	}
	if cfg.Model != "gpt-4" {
		t.Errorf("Default model = %q, want %q", cfg.Model, "gpt-4")
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Default temperature = %v, want 0.7", cfg.Temperature)
	}
	if cfg.MaxTokens != 1000 {
		t.Errorf("Default maxTokens = %d, want 1000", cfg.MaxTokens)
	}
	if cfg.Language != "English" {
		t.Errorf("Default language = %q, want %q", cfg.Language, "English")
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Default concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.FailOn != "none" {
		t.Errorf("Default failOn = %q, want %q", cfg.FailOn, "none")
	}
	if !cfg.SummaryComment {
		t.Error("Default summaryComment should be true")
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redactSecrets should be true")
	}
}

func TestMergeEnv_ActionInputs(t *testing.T) {
	t.Setenv("INPUT_PROVIDER", "Anthropic")
	t.Setenv("INPUT_MODEL_NAME", "claude-sonnet-4-20250514")
	t.Setenv("INPUT_API_KEY", "test-key-123")
	t.Setenv("INPUT_TEMPERATURE", "0.2")
	t.Setenv("INPUT_MAX_TOKENS", "2000")
	t.Setenv("INPUT_LANGUAGE", "German")
	t.Setenv("INPUT_FAIL_ON", "HIGH")
	t.Setenv("INPUT_EXCLUDE", "vendor/**, **/*.pb.go")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("Provider = %q, want %q (lowercased)", cfg.Provider, "anthropic")
	}
	if cfg.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.APIKey != "test-key-123" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want 2000", cfg.MaxTokens)
	}
	if cfg.Language != "German" {
		t.Errorf("Language = %q, want German", cfg.Language)
	}
	if cfg.FailOn != "high" {
		t.Errorf("FailOn = %q, want high (lowercased)", cfg.FailOn)
	}
	if len(cfg.Exclude) != 2 || cfg.Exclude[1] != "**/*.pb.go" {
		t.Errorf("Exclude = %v, want [vendor/** **/*.pb.go]", cfg.Exclude)
	}
}

func TestMergeEnv_InvalidTemperature(t *testing.T) {
	t.Setenv("INPUT_TEMPERATURE", "notanumber")
	cfg := Default()
	err := mergeEnv(&cfg)
	if err == nil {
		t.Fatal("expected error for invalid INPUT_TEMPERATURE")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("error type = %T, want *ConfigError", err)
	}
}

func TestMergeEnv_InvalidMaxTokens(t *testing.T) {
	t.Setenv("INPUT_MAX_TOKENS", "many")
	cfg := Default()
	if err := mergeEnv(&cfg); err == nil {
		t.Fatal("expected error for invalid INPUT_MAX_TOKENS")
	}
}

func TestResolveAPIKey_ProviderNative(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "native-key")
	cfg := Default()
	cfg.Provider = "anthropic"
	resolveAPIKey(&cfg)
	if cfg.APIKey != "native-key" {
		t.Errorf("APIKey = %q, want native-key", cfg.APIKey)
	}
}

func TestResolveAPIKey_InputWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "native-key")
	cfg := Default()
	cfg.APIKey = "input-key"
	resolveAPIKey(&cfg)
	if cfg.APIKey != "input-key" {
		t.Errorf("APIKey = %q, want input-key", cfg.APIKey)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	err := mergeOverrides(&cfg, map[string]string{
		"provider":    "gemini",
		"model":       "gemini-2.0-flash",
		"format":      "json",
		"failOn":      "medium",
		"maxFindings": "25",
		"temperature": "1.5",
		"concurrency": "8",
	})
	if err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want %q", cfg.Provider, "gemini")
	}
	if cfg.Model != "gemini-2.0-flash" {
		t.Errorf("Model = %q, want %q", cfg.Model, "gemini-2.0-flash")
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want %q", cfg.Format, "json")
	}
	if cfg.FailOn != "medium" {
		t.Errorf("FailOn = %q, want %q", cfg.FailOn, "medium")
	}
	if cfg.MaxFindings != 25 {
		t.Errorf("MaxFindings = %d, want 25", cfg.MaxFindings)
	}
	if cfg.Temperature != 1.5 {
		t.Errorf("Temperature = %v, want 1.5", cfg.Temperature)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
	}
}

func TestMergeOverrides_Bools(t *testing.T) {
	cfg := Default()
	err := mergeOverrides(&cfg, map[string]string{
		"cache":          "false",
		"redactSecrets":  "false",
		"summaryComment": "false",
	})
	if err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
	if cfg.Privacy.RedactSecrets {
		t.Error("RedactSecrets should be false")
	}
	if cfg.SummaryComment {
		t.Error("SummaryComment should be false")
	}
}

func TestMergeOverrides_Nil(t *testing.T) {
	cfg := Default()
	if err := mergeOverrides(&cfg, nil); err != nil {
		t.Fatalf("mergeOverrides(nil) error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Error("Provider changed with nil overrides")
	}
}

func TestPrecedence_OverridesBeatEnv(t *testing.T) {
	t.Setenv("INPUT_PROVIDER", "openai")
	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if err := mergeOverrides(&cfg, map[string]string{"provider": "gemini"}); err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini (override wins)", cfg.Provider)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.APIKey = "k"
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown provider", func(c *Config) { c.Provider = "ollama3" }, "provider"},
		{"empty model", func(c *Config) { c.Model = "" }, "model"},
		{"missing key", func(c *Config) { c.APIKey = "" }, "apiKey"},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, "temperature"},
		{"temperature negative", func(c *Config) { c.Temperature = -0.1 }, "temperature"},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, "maxTokens"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"azure without endpoint", func(c *Config) { c.Provider = "azure"; c.BaseURL = "" }, "baseURL"},
		{"bad failOn", func(c *Config) { c.FailOn = "panic" }, "failOn"},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.APIKey = "k"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error type = %T, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestValidate_LocalNeedsNoKey(t *testing.T) {
	cfg := Default()
	cfg.Provider = "local"
	cfg.APIKey = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("local provider should not require an API key: %v", err)
	}
}

func TestSetField(t *testing.T) {
	cfg := Default()
	tests := []struct {
		key   string
		value string
	}{
		{"provider", "anthropic"},
		{"model", "claude-sonnet-4-20250514"},
		{"format", "json"},
		{"failOn", "high"},
		{"maxFindings", "100"},
		{"temperature", "0.3"},
		{"language", "French"},
		{"summaryComment", "false"},
	}
	for _, tt := range tests {
		if err := SetField(&cfg, tt.key, tt.value); err != nil {
			t.Errorf("SetField(%q, %q) error: %v", tt.key, tt.value, err)
		}
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.MaxFindings != 100 {
		t.Errorf("MaxFindings = %d, want 100", cfg.MaxFindings)
	}
	if cfg.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", cfg.Temperature)
	}
	if cfg.SummaryComment {
		t.Error("SummaryComment should be false")
	}
}

func TestSetField_UnknownKey(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "nonexistent", "value"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSetField_InvalidInt(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "maxFindings", "notanumber"); err == nil {
		t.Error("expected error for non-integer value")
	}
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if dir != "/tmp/xdg-test/llm-reviewer" {
		t.Errorf("ConfigDir = %q, want %q", dir, "/tmp/xdg-test/llm-reviewer")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Provider = "anthropic"
	cfg.Model = "claude-sonnet-4-20250514"
	cfg.MaxFindings = 25
	if err := Save(cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded := Default()
	if err := loadFileInto(&loaded); err != nil {
		t.Fatalf("loadFileInto error: %v", err)
	}
	if loaded.Provider != "anthropic" {
		t.Errorf("Provider = %q, want %q", loaded.Provider, "anthropic")
	}
	if loaded.MaxFindings != 25 {
		t.Errorf("MaxFindings = %d, want 25", loaded.MaxFindings)
	}
}

func TestLoadFileInto_ExplicitFalseBool(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "llm-reviewer", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"summaryComment": false, "cache": {"enabled": false}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := loadFileInto(&cfg); err != nil {
		t.Fatalf("loadFileInto error: %v", err)
	}
	if cfg.SummaryComment {
		t.Error("file's explicit false should win over the default true")
	}
	if cfg.Cache.Enabled {
		t.Error("cache.enabled false in file should win")
	}
	// Untouched fields keep defaults.
	if cfg.Model != "gpt-4" {
		t.Errorf("Model = %q, want default gpt-4", cfg.Model)
	}
}

func TestLoadFileInto_NoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := Default()
	if err := loadFileInto(&cfg); err != nil {
		t.Fatalf("loadFileInto error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("missing file should leave defaults, Provider = %q", cfg.Provider)
	}
}

func TestLoad_Integration(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("INPUT_MODEL_NAME", "gpt-4o")

	cfg, err := Load(map[string]string{"provider": "openai"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Provider)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o (from env)", cfg.Model)
	}
	if cfg.MaxFindings != 50 {
		t.Errorf("MaxFindings = %d, want 50 (default)", cfg.MaxFindings)
	}
}
