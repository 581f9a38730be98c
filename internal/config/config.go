package config

import (
	"fmt"
	"time"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Port int
	Host string

	// SLO configuration file and its JSON schema
	ConfigFile string
	SchemaFile string

	// Audit storage; empty disables persistence
	DBPath string

	// Notification dispatcher; empty logs transitions instead
	WebhookURL string

	// Evaluation settings
	DefaultTick      time.Duration
	BucketsPerWindow int

	// Operational settings
	GracefulShutdownTimeout time.Duration
	Debug                   bool
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.ConfigFile == "" {
		return fmt.Errorf("SLO configuration file is required")
	}

	if c.SchemaFile == "" {
		return fmt.Errorf("schema file is required")
	}

	if c.DefaultTick <= 0 {
		return fmt.Errorf("default tick must be positive: %s", c.DefaultTick)
	}

	if c.BucketsPerWindow <= 0 {
		return fmt.Errorf("buckets per window must be positive: %d", c.BucketsPerWindow)
	}

	return nil
}

// Default returns default configuration.
func Default() Config {
	return Config{
		Port:                    8080,
		Host:                    "0.0.0.0",
		SchemaFile:              "schemas/slo_v1.json",
		DefaultTick:             30 * time.Second,
		BucketsPerWindow:        288,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
