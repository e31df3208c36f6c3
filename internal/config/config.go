// Package config loads and validates the foreman server configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/foreman-dev/foreman/pkg/llm"
)

// Config represents the foreman server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Model    ModelConfig    `yaml:"model"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// DatabaseConfig holds project store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`

	// SessionPath holds conversation state; empty means the project store
	// file is shared
	SessionPath string `yaml:"session_path,omitempty"`
}

// ModelConfig holds LLM provider configuration
type ModelConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"api_key,omitempty"`
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Resolve API key from environment variable
	if config.Model.APIKeyEnv != "" {
		config.Model.APIKey = os.Getenv(config.Model.APIKeyEnv)
	}

	config.SetDefaults()

	return &config, nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}

	if c.Database.Path == "" {
		c.Database.Path = "foreman.db"
	}
	if c.Database.SessionPath == "" {
		c.Database.SessionPath = c.Database.Path
	}

	if c.Model.Provider == "" {
		c.Model.Provider = "openai"
	}
	if c.Model.Model == "" {
		switch c.Model.Provider {
		case "anthropic":
			c.Model.Model = "claude-sonnet-4-20250514"
		default:
			c.Model.Model = "gpt-4o"
		}
	}
	if c.Model.APIKeyEnv == "" && c.Model.APIKey == "" {
		switch c.Model.Provider {
		case "anthropic":
			c.Model.APIKeyEnv = "ANTHROPIC_API_KEY"
		default:
			c.Model.APIKeyEnv = "OPENAI_API_KEY"
		}
		c.Model.APIKey = os.Getenv(c.Model.APIKeyEnv)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported model provider %q", c.Model.Provider)
	}

	if c.Model.APIKey == "" && c.Model.APIKeyEnv == "" {
		return fmt.Errorf("model requires api_key or api_key_env")
	}

	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.SetDefaults()
	return config
}

// ModelClientConfig converts the YAML model section into a client config
func (c *Config) ModelClientConfig() *llm.ModelConfig {
	return &llm.ModelConfig{
		Provider:    c.Model.Provider,
		Model:       c.Model.Model,
		APIKey:      c.Model.APIKey,
		BaseURL:     c.Model.BaseURL,
		Temperature: c.Model.Temperature,
		MaxTokens:   c.Model.MaxTokens,
	}
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
