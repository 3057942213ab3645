// Package config loads and persists simdb configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const currentConfigVersion = 1

// Config represents the complete simdb configuration
type Config struct {
	Version      int    `json:"version" mapstructure:"version"`
	DatabasePath string `json:"databasePath" mapstructure:"databasePath"`

	OpenAI  OpenAIConfig  `json:"openai" mapstructure:"openai"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// OpenAIConfig contains settings for the chat model client. The API key is
// deliberately absent: it is read from the OPENAI_API_KEY environment
// variable and never written to disk.
type OpenAIConfig struct {
	Model          string `json:"model" mapstructure:"model"`
	BaseURL        string `json:"baseUrl" mapstructure:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	MaxRetries     int    `json:"maxRetries" mapstructure:"maxRetries"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:      currentConfigVersion,
		DatabasePath: "simulations.db",
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o",
			BaseURL:        "https://api.openai.com",
			TimeoutSeconds: 120,
			MaxRetries:     4,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .simdb/config.json under root.
// A missing config file yields the defaults.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", currentConfigVersion)
	v.SetDefault("databasePath", "simulations.db")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.baseUrl", "https://api.openai.com")
	v.SetDefault("openai.timeoutSeconds", 120)
	v.SetDefault("openai.maxRetries", 4)
	v.SetDefault("logging.format", "human")
	v.SetDefault("logging.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".simdb"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to .simdb/config.json under root
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".simdb")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != currentConfigVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.DatabasePath == "" {
		return &ConfigError{Field: "databasePath", Message: "database path must not be empty"}
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		return &ConfigError{Field: "openai.timeoutSeconds", Message: "timeout must be positive"}
	}
	if c.OpenAI.MaxRetries < 0 {
		return &ConfigError{Field: "openai.maxRetries", Message: "max retries must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
