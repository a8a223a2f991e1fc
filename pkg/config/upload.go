package config

import (
	"fmt"
	"time"
)

// UploadConfig holds the upload manager's tunables: worker pool width and
// the TTL for published status records.
type UploadConfig struct {
	// WorkerCount is the number of background goroutines uploading files
	// concurrently.
	WorkerCount int `yaml:"worker_count"`

	// StatusTTL bounds how long a terminal upload status record remains
	// visible to late readers in the coordinator.
	StatusTTL time.Duration `yaml:"status_ttl"`

	// QueueDepth bounds how many submitted-but-not-yet-started uploads may
	// be buffered before Submit blocks.
	QueueDepth int `yaml:"queue_depth"`
}

// DefaultUploadConfig returns the built-in upload manager defaults.
func DefaultUploadConfig() *UploadConfig {
	return &UploadConfig{
		WorkerCount: 4,
		StatusTTL:   1 * time.Hour,
		QueueDepth:  256,
	}
}

// LoadUploadConfigFromEnv loads upload manager configuration from
// environment variables, falling back to DefaultUploadConfig for anything
// unset.
func LoadUploadConfigFromEnv() (*UploadConfig, error) {
	cfg := DefaultUploadConfig()

	if v, err := envInt("UPLOAD_WORKER_COUNT"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.WorkerCount = *v
	}
	if v, err := envDuration("UPLOAD_STATUS_TTL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.StatusTTL = *v
	}
	if v, err := envInt("UPLOAD_QUEUE_DEPTH"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.QueueDepth = *v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *UploadConfig) Validate() error {
	if c == nil {
		return NewValidationError("upload", "", "", fmt.Errorf("%w: upload configuration is nil", ErrMissingRequiredField))
	}
	if c.WorkerCount < 1 {
		return NewValidationError("upload", "", "worker_count", fmt.Errorf("%w: worker_count must be at least 1", ErrInvalidValue))
	}
	if c.StatusTTL <= 0 {
		return NewValidationError("upload", "", "status_ttl", fmt.Errorf("%w: status_ttl must be positive", ErrInvalidValue))
	}
	if c.QueueDepth < 1 {
		return NewValidationError("upload", "", "queue_depth", fmt.Errorf("%w: queue_depth must be at least 1", ErrInvalidValue))
	}
	return nil
}
