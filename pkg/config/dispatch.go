package config

import (
	"fmt"
	"time"
)

// DispatchConfig holds the dispatcher's tunables: bounded fan-out width for
// direct mode and the per-agent call timeout.
type DispatchConfig struct {
	// Concurrency bounds how many of the six memory agents may be called in
	// parallel for one absorbed batch in direct mode.
	Concurrency int `yaml:"dispatch_concurrency"`

	// AgentTimeout bounds a single agent call.
	AgentTimeout time.Duration `yaml:"agent_timeout"`
}

// DefaultDispatchConfig returns the built-in dispatcher defaults.
func DefaultDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		Concurrency:  6,
		AgentTimeout: 60 * time.Second,
	}
}

// LoadDispatchConfigFromEnv loads dispatcher configuration from environment
// variables, falling back to DefaultDispatchConfig for anything unset.
func LoadDispatchConfigFromEnv() (*DispatchConfig, error) {
	cfg := DefaultDispatchConfig()

	if v, err := envInt("DISPATCH_CONCURRENCY"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.Concurrency = *v
	}
	if v, err := envDuration("DISPATCH_AGENT_TIMEOUT"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.AgentTimeout = *v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *DispatchConfig) Validate() error {
	if c == nil {
		return NewValidationError("dispatch", "", "", fmt.Errorf("%w: dispatch configuration is nil", ErrMissingRequiredField))
	}
	if c.Concurrency < 1 {
		return NewValidationError("dispatch", "", "dispatch_concurrency", fmt.Errorf("%w: dispatch_concurrency must be at least 1", ErrInvalidValue))
	}
	if c.AgentTimeout <= 0 {
		return NewValidationError("dispatch", "", "agent_timeout", fmt.Errorf("%w: agent_timeout must be positive", ErrInvalidValue))
	}
	return nil
}
