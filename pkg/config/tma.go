package config

import (
	"fmt"
	"strconv"
	"time"
)

// TMAConfig holds the accumulator's tunables: absorption threshold, queue
// TTLs and capacity caps, lock TTLs, and the dispatch-mode switch.
type TMAConfig struct {
	// Threshold is the minimum number of ready messages required to trigger
	// absorption.
	Threshold int `yaml:"threshold"`

	// MessageTTL bounds how long an unabsorbed message queue survives.
	MessageTTL time.Duration `yaml:"message_ttl"`

	// ConversationTTL bounds how long unabsorbed conversation turns survive.
	ConversationTTL time.Duration `yaml:"conversation_ttl"`

	// MaxMessages is the capacity cap on messages(user_id); oldest entries
	// are trimmed first.
	MaxMessages int `yaml:"max_messages"`

	// MaxConversations is the capacity cap on conversations(user_id); must
	// be <= MaxMessages.
	MaxConversations int `yaml:"max_conversations"`

	// AbsorbLockTTL bounds how long a dead pod can hold the absorption
	// lock before another pod may proceed.
	AbsorbLockTTL time.Duration `yaml:"absorb_lock_ttl"`

	// InitLockTTL bounds the one-shot user-initialization lock.
	InitLockTTL time.Duration `yaml:"init_lock_ttl"`

	// InitDoneTTL bounds how long the init-done flag is remembered.
	InitDoneTTL time.Duration `yaml:"init_done_ttl"`

	// SkipMetaCoordinator selects direct-mode dispatch (fan out to all six
	// memory agents) when true, coordinator-mode (single meta-memory agent
	// call) when false.
	SkipMetaCoordinator bool `yaml:"skip_meta_coordinator"`

	// RecentImageWindow bounds how far back GetRecentImages looks for
	// "fresh" visual context.
	RecentImageWindow time.Duration `yaml:"recent_image_window"`

	// ReenqueueOnDispatchFailure, if true, re-enqueues a popped batch onto
	// the head of messages(user_id) when every agent in the batch's
	// dispatch failed, trading duplicate-delivery risk for durability.
	// Default false matches the source's at-most-once behavior (see
	// DESIGN.md's resolution of the at-least-once open question).
	ReenqueueOnDispatchFailure bool `yaml:"reenqueue_on_dispatch_failure"`

	// AbsorptionPoolWorkerCount is the number of background goroutines
	// polling recently active users for readiness, per pod.
	AbsorptionPoolWorkerCount int `yaml:"absorption_pool_worker_count"`

	// AbsorptionPollInterval is the base interval between poll passes.
	AbsorptionPollInterval time.Duration `yaml:"absorption_poll_interval"`

	// AbsorptionPollJitter is the random jitter applied to
	// AbsorptionPollInterval, so pool workers don't all wake in lockstep.
	AbsorptionPollJitter time.Duration `yaml:"absorption_poll_jitter"`
}

// DefaultTMAConfig returns the built-in accumulator defaults.
func DefaultTMAConfig() *TMAConfig {
	return &TMAConfig{
		Threshold:                  10,
		MessageTTL:                 24 * time.Hour,
		ConversationTTL:            1 * time.Hour,
		MaxMessages:                100,
		MaxConversations:           50,
		AbsorbLockTTL:              30 * time.Second,
		InitLockTTL:                30 * time.Second,
		InitDoneTTL:                7 * 24 * time.Hour,
		SkipMetaCoordinator:        false,
		RecentImageWindow:          1 * time.Minute,
		ReenqueueOnDispatchFailure: false,
		AbsorptionPoolWorkerCount:  5,
		AbsorptionPollInterval:     1 * time.Second,
		AbsorptionPollJitter:       500 * time.Millisecond,
	}
}

// LoadTMAConfigFromEnv loads accumulator configuration from environment
// variables, falling back to DefaultTMAConfig for anything unset.
func LoadTMAConfigFromEnv() (*TMAConfig, error) {
	cfg := DefaultTMAConfig()

	if v, err := envInt("TMA_THRESHOLD"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.Threshold = *v
	}
	if v, err := envDuration("TMA_MESSAGE_TTL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.MessageTTL = *v
	}
	if v, err := envDuration("TMA_CONVERSATION_TTL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.ConversationTTL = *v
	}
	if v, err := envInt("TMA_MAX_MESSAGES"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.MaxMessages = *v
	}
	if v, err := envInt("TMA_MAX_CONVERSATIONS"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.MaxConversations = *v
	}
	if v, err := envDuration("TMA_ABSORB_LOCK_TTL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.AbsorbLockTTL = *v
	}
	if v, err := envDuration("TMA_INIT_LOCK_TTL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.InitLockTTL = *v
	}
	if v, err := envDuration("TMA_INIT_DONE_TTL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.InitDoneTTL = *v
	}
	if v, err := envBool("TMA_SKIP_META_COORDINATOR"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.SkipMetaCoordinator = *v
	}
	if v, err := envDuration("TMA_RECENT_IMAGE_WINDOW"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.RecentImageWindow = *v
	}
	if v, err := envBool("TMA_REENQUEUE_ON_DISPATCH_FAILURE"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.ReenqueueOnDispatchFailure = *v
	}
	if v, err := envInt("TMA_ABSORPTION_POOL_WORKER_COUNT"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.AbsorptionPoolWorkerCount = *v
	}
	if v, err := envDuration("TMA_ABSORPTION_POLL_INTERVAL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.AbsorptionPollInterval = *v
	}
	if v, err := envDuration("TMA_ABSORPTION_POLL_JITTER"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.AbsorptionPollJitter = *v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *TMAConfig) Validate() error {
	if c == nil {
		return NewValidationError("tma", "", "", fmt.Errorf("%w: tma configuration is nil", ErrMissingRequiredField))
	}
	if c.Threshold < 1 {
		return NewValidationError("tma", "", "threshold", fmt.Errorf("%w: threshold must be at least 1", ErrInvalidValue))
	}
	if c.MessageTTL < time.Hour {
		return NewValidationError("tma", "", "message_ttl", fmt.Errorf("%w: message_ttl must be at least 1h", ErrInvalidValue))
	}
	if c.ConversationTTL < 10*time.Minute {
		return NewValidationError("tma", "", "conversation_ttl", fmt.Errorf("%w: conversation_ttl must be at least 10m", ErrInvalidValue))
	}
	if c.MaxMessages < 1 {
		return NewValidationError("tma", "", "max_messages", fmt.Errorf("%w: max_messages must be at least 1", ErrInvalidValue))
	}
	if c.MaxConversations < 0 {
		return NewValidationError("tma", "", "max_conversations", fmt.Errorf("%w: max_conversations must be non-negative", ErrInvalidValue))
	}
	if c.MaxConversations > c.MaxMessages {
		return NewValidationError("tma", "", "max_conversations", fmt.Errorf("%w: max_conversations (%d) must not exceed max_messages (%d)", ErrInvalidValue, c.MaxConversations, c.MaxMessages))
	}
	if c.AbsorbLockTTL <= 0 {
		return NewValidationError("tma", "", "absorb_lock_ttl", fmt.Errorf("%w: absorb_lock_ttl must be positive", ErrInvalidValue))
	}
	if c.InitLockTTL <= 0 {
		return NewValidationError("tma", "", "init_lock_ttl", fmt.Errorf("%w: init_lock_ttl must be positive", ErrInvalidValue))
	}
	if c.InitDoneTTL <= 0 {
		return NewValidationError("tma", "", "init_done_ttl", fmt.Errorf("%w: init_done_ttl must be positive", ErrInvalidValue))
	}
	if c.RecentImageWindow <= 0 {
		return NewValidationError("tma", "", "recent_image_window", fmt.Errorf("%w: recent_image_window must be positive", ErrInvalidValue))
	}
	if c.AbsorptionPoolWorkerCount < 1 {
		return NewValidationError("tma", "", "absorption_pool_worker_count", fmt.Errorf("%w: absorption_pool_worker_count must be at least 1", ErrInvalidValue))
	}
	if c.AbsorptionPollInterval <= 0 {
		return NewValidationError("tma", "", "absorption_poll_interval", fmt.Errorf("%w: absorption_poll_interval must be positive", ErrInvalidValue))
	}
	return nil
}

func envInt(key string) (*int, error) {
	v, ok := lookupEnv(key)
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &n, nil
}

func envDuration(key string) (*time.Duration, error) {
	v, ok := lookupEnv(key)
	if !ok {
		return nil, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &d, nil
}

func envBool(key string) (*bool, error) {
	v, ok := lookupEnv(key)
	if !ok {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &b, nil
}
