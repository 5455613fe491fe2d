// Package config loads the quorum configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all quorum configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Council behavior
	Council CouncilConfig `yaml:"council"`

	// HTTP/WebSocket server
	Server ServerConfig `yaml:"server"`

	// Persistence and status output
	Archive ArchiveConfig `yaml:"archive"`
	Status  StatusConfig  `yaml:"status"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model provider used by the agents.
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	Retries  int    `yaml:"retries"`
}

// CouncilConfig configures deliberation defaults.
type CouncilConfig struct {
	MaxRounds       int    `yaml:"max_rounds"`
	DecisionTimeout string `yaml:"decision_timeout"` // zero or empty disables
}

// ServerConfig configures the transport.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ArchiveConfig configures the SQLite archive.
type ArchiveConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// StatusConfig configures the markdown dashboard.
type StatusConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DashboardPath string `yaml:"dashboard_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "anthropic",
			Timeout:  "120s",
			Retries:  2,
		},
		Council: CouncilConfig{
			MaxRounds: 3,
		},
		Server: ServerConfig{
			Addr:            ":8090",
			ShutdownTimeout: "10s",
		},
		Archive: ArchiveConfig{
			Enabled:      true,
			DatabasePath: "data/quorum.db",
		},
		Status: StatusConfig{
			Enabled:       true,
			DashboardPath: "status/dashboard.md",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults;
// environment variables are applied last.
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the runtime cannot honor.
func (c *Config) Validate() error {
	if c.Council.MaxRounds < 1 {
		return fmt.Errorf("config: council.max_rounds must be at least 1")
	}
	switch c.LLM.Provider {
	case "anthropic", "gemini", "":
	default:
		return fmt.Errorf("config: unknown llm.provider %q", c.LLM.Provider)
	}
	if c.Council.DecisionTimeout != "" {
		if _, err := time.ParseDuration(c.Council.DecisionTimeout); err != nil {
			return fmt.Errorf("config: council.decision_timeout: %w", err)
		}
	}
	return nil
}

// applyEnvOverrides applies QUORUM_* and provider key environment variables.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("QUORUM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if v := os.Getenv("QUORUM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("QUORUM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("QUORUM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("QUORUM_DB"); v != "" {
		c.Archive.DatabasePath = v
	}
	if v := os.Getenv("QUORUM_MAX_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Council.MaxRounds = n
		}
	}
	if v := os.Getenv("QUORUM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// LLMTimeout returns the model call timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// DecisionTimeout returns the gate timeout, zero when disabled.
func (c *Config) DecisionTimeout() time.Duration {
	if c.Council.DecisionTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Council.DecisionTimeout)
	if err != nil {
		return 0
	}
	return d
}

// ShutdownTimeout returns the graceful shutdown window.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
