// Package config loads voicecoach configuration from YAML with environment
// overrides. The core session components never parse configuration themselves;
// cmd/coachd resolves a Config here and passes plain values into constructors.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all voicecoach configuration.
type Config struct {
	Name string `yaml:"name"`

	// Reasoning provider configuration
	Reasoning ReasoningConfig `yaml:"reasoning"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Session tunables
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ReasoningConfig selects and configures the delegated-reasoning provider.
type ReasoningConfig struct {
	Provider string `yaml:"provider"` // gemini, anthropic, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds the orchestration tunables.
type SessionConfig struct {
	DelegationTimeout string `yaml:"delegation_timeout"`
	QueueCapacity     int    `yaml:"queue_capacity"`
	DrainGrace        string `yaml:"drain_grace"`
}

// LoggingConfig configures categorized logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
	Path       string          `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "voicecoach",
		Reasoning: ReasoningConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "2s",
		},
		Storage: StorageConfig{
			Path: filepath.Join(".voicecoach", "coach.db"),
		},
		Session: SessionConfig{
			DelegationTimeout: "2s",
			QueueCapacity:     64,
			DrainGrace:        "5s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Reasoning.Provider == "gemini" {
		c.Reasoning.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.Reasoning.Provider == "anthropic" {
		c.Reasoning.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Reasoning.Provider == "openai" {
		c.Reasoning.APIKey = key
	}
	if path := os.Getenv("VOICECOACH_DB"); path != "" {
		c.Storage.Path = path
	}
}

// ValidProviders lists all supported reasoning providers.
var ValidProviders = []string{"gemini", "anthropic", "openai"}

// Validate checks the configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	valid := false
	for _, p := range ValidProviders {
		if c.Reasoning.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid reasoning provider: %s (valid: %v)", c.Reasoning.Provider, ValidProviders)
	}
	if c.Reasoning.APIKey == "" {
		return fmt.Errorf("reasoning API key not configured (set GEMINI_API_KEY, ANTHROPIC_API_KEY, or OPENAI_API_KEY)")
	}
	if c.Session.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must be non-negative, got %d", c.Session.QueueCapacity)
	}
	return nil
}

// GetDelegationTimeout returns the per-call delegation budget.
func (c *Config) GetDelegationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.DelegationTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetDrainGrace returns the teardown grace period for the persistence worker.
func (c *Config) GetDrainGrace() time.Duration {
	d, err := time.ParseDuration(c.Session.DrainGrace)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// GetReasoningTimeout returns the provider HTTP timeout.
func (c *Config) GetReasoningTimeout() time.Duration {
	d, err := time.ParseDuration(c.Reasoning.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}
