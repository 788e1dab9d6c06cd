package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete lexd configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Store    StoreConfig    `koanf:"store"`
	Provider ProviderConfig `koanf:"provider"`
	Jobs     JobsConfig     `koanf:"jobs"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	// Backend is "memory" or "nats".
	Backend string `koanf:"backend"`
	NATSURL string `koanf:"nats_url"`
	Bucket  string `koanf:"bucket"`
}

// ProviderConfig holds extraction provider configuration. An empty
// APIKey selects the built-in heuristic provider.
type ProviderConfig struct {
	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	Model             string        `koanf:"model"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	Burst             int           `koanf:"burst"`
}

// JobsConfig holds processing job configuration.
type JobsConfig struct {
	Timeout       time.Duration `koanf:"timeout"`
	MaxConcurrent int           `koanf:"max_concurrent"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend: "memory",
			NATSURL: "nats://127.0.0.1:4222",
			Bucket:  "lexd-jobs",
		},
		Provider: ProviderConfig{
			Model:             "gpt-4o-mini",
			Timeout:           45 * time.Second,
			RequestsPerMinute: 50,
			Burst:             5,
		},
		Jobs: JobsConfig{
			Timeout:       5 * time.Minute,
			MaxConcurrent: 4,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Store.Backend != "memory" && c.Store.Backend != "nats" {
		return fmt.Errorf("unknown store backend: %q (must be memory or nats)", c.Store.Backend)
	}
	if c.Store.Backend == "nats" && c.Store.NATSURL == "" {
		return errors.New("nats backend requires store.nats_url")
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("provider timeout must be positive")
	}
	if c.Jobs.Timeout <= 0 {
		return errors.New("job timeout must be positive")
	}
	if c.Jobs.MaxConcurrent < 1 {
		return errors.New("jobs.max_concurrent must be at least 1")
	}
	return nil
}
