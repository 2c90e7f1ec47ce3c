package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config is the effective llm-reviewer configuration after merging
// defaults, the config file, environment, and flag overrides.
type Config struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"baseURL,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	Language    string  `json:"language"`

	Concurrency           int `json:"concurrency"`
	MaxRetries            int `json:"maxRetries"`
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`
	RunTimeoutSeconds     int `json:"runTimeoutSeconds"`

	MaxChunkTokens int      `json:"maxChunkTokens"`
	MaxFileBytes   int      `json:"maxFileBytes"`
	Exclude        []string `json:"exclude"`

	Format         string `json:"format"`
	FailOn         string `json:"failOn"`
	MaxFindings    int    `json:"maxFindings"`
	RulesFile      string `json:"rulesFile,omitempty"`
	SummaryComment bool   `json:"summaryComment"`
	InlineComments bool   `json:"inlineComments"`

	PushgatewayURL string `json:"pushgatewayURL,omitempty"`

	Cache   CacheConfig   `json:"cache"`
	Privacy PrivacyConfig `json:"privacy"`
}

// CacheConfig controls response caching behavior.
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// PrivacyConfig controls secret redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths,omitempty"`
}

// ConfigError reports missing or invalid configuration. It is always
// raised before any network call is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Providers lists the accepted provider variants.
var Providers = []string{"openai", "azure", "local", "anthropic", "gemini"}

var validFailOn = map[string]bool{
	"none": true, "low": true, "medium": true, "high": true, "critical": true,
}

var validFormats = map[string]bool{
	"text": true, "json": true, "markdown": true, "sarif": true,
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:              "openai",
		Model:                 "gpt-4",
		Temperature:           0.7,
		MaxTokens:             1000,
		Language:              "English",
		Concurrency:           4,
		MaxRetries:            3,
		RequestTimeoutSeconds: 120,
		RunTimeoutSeconds:     600,
		MaxChunkTokens:        3000,
		MaxFileBytes:          500000,
		Exclude: []string{
			"vendor/**", "**/*.gen.go", "**/dist/**",
			"**/*.min.js", "**/package-lock.json", "**/go.sum",
		},
		Format:         "text",
		FailOn:         "none",
		MaxFindings:    50,
		SummaryComment: true,
		InlineComments: true,
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*", "**/id_rsa", "**/*.pem"},
		},
	}
}

// ConfigDir returns the platform-appropriate config directory.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "llm-reviewer"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "llm-reviewer"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "llm-reviewer"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "llm-reviewer"), nil
	default:
		return filepath.Join(home, ".config", "llm-reviewer"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Save writes the config to the config file. The API key is never
// written; it only ever comes from the environment.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFile returns the defaults with only the config file applied, for
// commands that edit the file without consulting environment or flags.
func LoadFile() (Config, error) {
	cfg := Default()
	if err := loadFileInto(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load builds the effective config by merging: defaults <- file <- env
// <- overrides. The overrides map comes from CLI flags; only keys the
// user actually set should be present.
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()
	if err := loadFileInto(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	resolveAPIKey(&cfg)
	return cfg, nil
}

// loadFileInto unmarshals the config file over the defaults already in
// cfg, so absent fields keep their default values and present fields,
// including explicit false booleans, win.
func loadFileInto(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return &ConfigError{Field: "file", Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	return nil
}

// mergeEnv applies the GitHub Action input contract. A present but
// unparseable numeric input is a ConfigError rather than being silently
// ignored.
func mergeEnv(cfg *Config) error {
	if v := os.Getenv("INPUT_PROVIDER"); v != "" {
		cfg.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("INPUT_MODEL_NAME"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("INPUT_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("INPUT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("INPUT_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &ConfigError{Field: "temperature", Reason: "INPUT_TEMPERATURE must be a number"}
		}
		cfg.Temperature = f
	}
	if v := os.Getenv("INPUT_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "maxTokens", Reason: "INPUT_MAX_TOKENS must be an integer"}
		}
		cfg.MaxTokens = n
	}
	if v := os.Getenv("INPUT_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("INPUT_FAIL_ON"); v != "" {
		cfg.FailOn = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("INPUT_EXCLUDE"); v != "" {
		cfg.Exclude = splitList(v)
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.PushgatewayURL = v
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	if overrides == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v, ok := overrides[key]; ok && v != "" {
			*dst = v
		}
	}
	str("provider", &cfg.Provider)
	str("model", &cfg.Model)
	str("baseURL", &cfg.BaseURL)
	str("language", &cfg.Language)
	str("format", &cfg.Format)
	str("failOn", &cfg.FailOn)
	str("rulesFile", &cfg.RulesFile)
	str("pushgateway", &cfg.PushgatewayURL)

	if v, ok := overrides["temperature"]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &ConfigError{Field: "temperature", Reason: "must be a number"}
		}
		cfg.Temperature = f
	}
	num := func(key string, dst *int) error {
		v, ok := overrides[key]
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: key, Reason: "must be an integer"}
		}
		*dst = n
		return nil
	}
	if err := num("maxTokens", &cfg.MaxTokens); err != nil {
		return err
	}
	if err := num("maxFindings", &cfg.MaxFindings); err != nil {
		return err
	}
	if err := num("concurrency", &cfg.Concurrency); err != nil {
		return err
	}
	if err := num("maxChunkTokens", &cfg.MaxChunkTokens); err != nil {
		return err
	}

	if v, ok := overrides["exclude"]; ok && v != "" {
		cfg.Exclude = splitList(v)
	}
	if v, ok := overrides["cache"]; ok && v != "" {
		cfg.Cache.Enabled = v == "true"
	}
	if v, ok := overrides["redactSecrets"]; ok && v != "" {
		cfg.Privacy.RedactSecrets = v == "true"
	}
	if v, ok := overrides["summaryComment"]; ok && v != "" {
		cfg.SummaryComment = v == "true"
	}
	if v, ok := overrides["inlineComments"]; ok && v != "" {
		cfg.InlineComments = v == "true"
	}
	return nil
}

// providerKeyEnv maps each provider variant to the native environment
// variables accepted when INPUT_API_KEY is unset.
var providerKeyEnv = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"azure":     {"AZURE_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"local":     {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

func resolveAPIKey(cfg *Config) {
	if cfg.APIKey != "" {
		return
	}
	for _, name := range providerKeyEnv[cfg.Provider] {
		if v := os.Getenv(name); v != "" {
			cfg.APIKey = v
			return
		}
	}
}

// Validate checks the merged config. All failures are ConfigErrors and
// surface before any network call.
func (c *Config) Validate() error {
	known := false
	for _, p := range Providers {
		if c.Provider == p {
			known = true
			break
		}
	}
	if !known {
		return &ConfigError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q (want one of %s)", c.Provider, strings.Join(Providers, ", "))}
	}
	if c.Model == "" {
		return &ConfigError{Field: "model", Reason: "model name is required"}
	}
	if c.APIKey == "" && c.Provider != "local" {
		return &ConfigError{Field: "apiKey", Reason: "API key is required (set INPUT_API_KEY or the provider's native variable)"}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &ConfigError{Field: "temperature", Reason: fmt.Sprintf("%.2f is outside [0, 2]", c.Temperature)}
	}
	if c.MaxTokens <= 0 {
		return &ConfigError{Field: "maxTokens", Reason: "must be positive"}
	}
	if c.Concurrency <= 0 {
		return &ConfigError{Field: "concurrency", Reason: "must be positive"}
	}
	if c.MaxChunkTokens <= 0 {
		return &ConfigError{Field: "maxChunkTokens", Reason: "must be positive"}
	}
	if c.Provider == "azure" && c.BaseURL == "" {
		return &ConfigError{Field: "baseURL", Reason: "azure provider requires the resource endpoint as base URL"}
	}
	if !validFailOn[c.FailOn] {
		return &ConfigError{Field: "failOn", Reason: fmt.Sprintf("unknown threshold %q", c.FailOn)}
	}
	if !validFormats[c.Format] {
		return &ConfigError{Field: "format", Reason: fmt.Sprintf("unknown format %q", c.Format)}
	}
	return nil
}

// SetField sets a single config field by key name for the `config set`
// command. Returns an error if the key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "baseURL":
		cfg.BaseURL = value
	case "language":
		cfg.Language = value
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "rulesFile":
		cfg.RulesFile = value
	case "pushgatewayURL":
		cfg.PushgatewayURL = value
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("temperature must be a number: %w", err)
		}
		cfg.Temperature = f
	case "maxTokens", "maxFindings", "concurrency", "maxChunkTokens", "maxFileBytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		switch key {
		case "maxTokens":
			cfg.MaxTokens = n
		case "maxFindings":
			cfg.MaxFindings = n
		case "concurrency":
			cfg.Concurrency = n
		case "maxChunkTokens":
			cfg.MaxChunkTokens = n
		case "maxFileBytes":
			cfg.MaxFileBytes = n
		}
	case "summaryComment", "inlineComments", "cacheEnabled", "redactSecrets":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", key, err)
		}
		switch key {
		case "summaryComment":
			cfg.SummaryComment = b
		case "inlineComments":
			cfg.InlineComments = b
		case "cacheEnabled":
			cfg.Cache.Enabled = b
		case "redactSecrets":
			cfg.Privacy.RedactSecrets = b
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
