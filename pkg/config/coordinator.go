package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// CoordinatorConfig configures the connection to the shared Redis-like
// coordinator. Every pod in the deployment must point at the same instance.
type CoordinatorConfig struct {
	// Addr is the coordinator's host:port.
	Addr string `yaml:"addr"`

	// Password authenticates to the coordinator, empty if unauthenticated.
	Password string `yaml:"password"`

	// DB selects the logical database index.
	DB int `yaml:"db"`

	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DefaultCoordinatorConfig returns the built-in coordinator defaults.
func DefaultCoordinatorConfig() *CoordinatorConfig {
	return &CoordinatorConfig{
		Addr:        "localhost:6379",
		DB:          0,
		DialTimeout: 5 * time.Second,
	}
}

// LoadCoordinatorConfigFromEnv loads coordinator configuration from
// environment variables, falling back to DefaultCoordinatorConfig for
// anything unset.
func LoadCoordinatorConfigFromEnv() (*CoordinatorConfig, error) {
	cfg := DefaultCoordinatorConfig()
	cfg.Addr = getEnvOrDefault("COORDINATOR_ADDR", cfg.Addr)
	cfg.Password = os.Getenv("COORDINATOR_PASSWORD")

	if v := os.Getenv("COORDINATOR_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COORDINATOR_DB: %w", err)
		}
		cfg.DB = db
	}

	if v := os.Getenv("COORDINATOR_DIAL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COORDINATOR_DIAL_TIMEOUT: %w", err)
		}
		cfg.DialTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *CoordinatorConfig) Validate() error {
	if c == nil {
		return NewValidationError("coordinator", "", "", fmt.Errorf("%w: coordinator configuration is nil", ErrMissingRequiredField))
	}
	if c.Addr == "" {
		return NewValidationError("coordinator", "", "addr", fmt.Errorf("%w: addr must not be empty", ErrInvalidValue))
	}
	if c.DialTimeout <= 0 {
		return NewValidationError("coordinator", "", "dial_timeout", fmt.Errorf("%w: dial_timeout must be positive", ErrInvalidValue))
	}
	return nil
}
