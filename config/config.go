// Package config provides configuration loading and management for the
// forge bridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bridge configuration
type Config struct {
	Ingest   IngestConfig   `yaml:"ingest"`
	Channel  ChannelConfig  `yaml:"channel"`
	NATS     NATSConfig     `yaml:"nats"`
	Mappings MappingsConfig `yaml:"mappings"`
}

// IngestConfig configures the mutation path
type IngestConfig struct {
	// Timeout bounds one push; exceeding it fails the operation with
	// nothing committed
	Timeout time.Duration `yaml:"timeout"`
	// LockRetries bounds write-conflict retries before the push fails
	LockRetries uint64 `yaml:"lock_retries"`
}

// ChannelConfig configures notification delivery
type ChannelConfig struct {
	// QueueSize is the per-subscription delivery queue capacity
	QueueSize int `yaml:"queue_size"`
	// DeliveryAttempts bounds retries for one failing delivery
	DeliveryAttempts int `yaml:"delivery_attempts"`
}

// NATSConfig configures the NATS connection for notification publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = in-process delivery only)
	URL string `yaml:"url"`
}

// MappingsConfig configures endpoint term mapping seed files
type MappingsConfig struct {
	// File is a mapping seed file applied at startup (empty = none)
	File string `yaml:"file"`
	// Watch reloads the seed file when it changes on disk
	Watch bool `yaml:"watch"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Timeout:     10 * time.Second,
			LockRetries: 5,
		},
		Channel: ChannelConfig{
			QueueSize:        64,
			DeliveryAttempts: 3,
		},
		NATS: NATSConfig{
			URL: "",
		},
		Mappings: MappingsConfig{
			File:  "",
			Watch: false,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Ingest.Timeout <= 0 {
		return fmt.Errorf("ingest.timeout must be positive")
	}
	if c.Channel.QueueSize <= 0 {
		return fmt.Errorf("channel.queue_size must be positive")
	}
	if c.Channel.DeliveryAttempts <= 0 {
		return fmt.Errorf("channel.delivery_attempts must be positive")
	}
	if c.Mappings.Watch && c.Mappings.File == "" {
		return fmt.Errorf("mappings.watch requires mappings.file")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Ingest
	if other.Ingest.Timeout != 0 {
		c.Ingest.Timeout = other.Ingest.Timeout
	}
	if other.Ingest.LockRetries != 0 {
		c.Ingest.LockRetries = other.Ingest.LockRetries
	}

	// Channel
	if other.Channel.QueueSize != 0 {
		c.Channel.QueueSize = other.Channel.QueueSize
	}
	if other.Channel.DeliveryAttempts != 0 {
		c.Channel.DeliveryAttempts = other.Channel.DeliveryAttempts
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Mappings
	if other.Mappings.File != "" {
		c.Mappings.File = other.Mappings.File
	}
	if other.Mappings.Watch {
		c.Mappings.Watch = true
	}
}
