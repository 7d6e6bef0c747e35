// Package config handles configuration management with validation.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Pool   PoolConfig   `yaml:"pool"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int `yaml:"idle_timeout_sec"`
}

// DBConfig contains storage settings.
type DBConfig struct {
	// Path is the SQLite database path. ":memory:" for an in-memory database.
	Path string `yaml:"path"`
}

// PoolConfig describes the pool seeded at startup. Seeding is idempotent:
// an existing pool keeps its state and this block is ignored for it.
type PoolConfig struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label"`
	Capacity int    `yaml:"capacity"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 15,
			IdleTimeoutSec:  60,
		},
		DB: DBConfig{Path: "seatpool.db"},
		Pool: PoolConfig{
			ID:       "main",
			Label:    "Main Event",
			Capacity: 500,
		},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Pool.ID == "" {
		return fmt.Errorf("pool id is required")
	}
	if c.Pool.Capacity < 0 {
		return fmt.Errorf("pool capacity must be >= 0, got %d", c.Pool.Capacity)
	}
	return nil
}
