package config

import (
	"fmt"
	"time"
)

// AuditConfig controls retention of the processed-batch audit ledger.
type AuditConfig struct {
	// RetentionDays is how many days to keep audit rows before pruning.
	RetentionDays int `yaml:"retention_days"`

	// CleanupInterval is how often the retention loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultAuditConfig returns the built-in audit retention defaults.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		RetentionDays:   30,
		CleanupInterval: 12 * time.Hour,
	}
}

// LoadAuditConfigFromEnv loads audit retention configuration from
// environment variables, falling back to DefaultAuditConfig for anything
// unset.
func LoadAuditConfigFromEnv() (*AuditConfig, error) {
	cfg := DefaultAuditConfig()

	if v, err := envInt("AUDIT_RETENTION_DAYS"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.RetentionDays = *v
	}
	if v, err := envDuration("AUDIT_CLEANUP_INTERVAL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.CleanupInterval = *v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *AuditConfig) Validate() error {
	if c == nil {
		return NewValidationError("audit", "", "", fmt.Errorf("%w: audit configuration is nil", ErrMissingRequiredField))
	}
	if c.RetentionDays < 1 {
		return NewValidationError("audit", "", "retention_days", fmt.Errorf("%w: retention_days must be at least 1", ErrInvalidValue))
	}
	if c.CleanupInterval <= 0 {
		return NewValidationError("audit", "", "cleanup_interval", fmt.Errorf("%w: cleanup_interval must be positive", ErrInvalidValue))
	}
	return nil
}
