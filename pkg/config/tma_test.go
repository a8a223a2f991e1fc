package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTMAConfig(t *testing.T) {
	cfg := DefaultTMAConfig()
	assert.Equal(t, 10, cfg.Threshold)
	assert.Equal(t, 24*time.Hour, cfg.MessageTTL)
	assert.Equal(t, 1*time.Hour, cfg.ConversationTTL)
	assert.Equal(t, 100, cfg.MaxMessages)
	assert.Equal(t, 50, cfg.MaxConversations)
	assert.False(t, cfg.SkipMetaCoordinator)
	assert.False(t, cfg.ReenqueueOnDispatchFailure)
	require.NoError(t, cfg.Validate())
}

func TestTMAConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TMAConfig)
		wantErr string
	}{
		{"nil", nil, ""},
		{"threshold zero", func(c *TMAConfig) { c.Threshold = 0 }, "threshold"},
		{"message ttl too short", func(c *TMAConfig) { c.MessageTTL = time.Minute }, "message_ttl"},
		{"conversation ttl too short", func(c *TMAConfig) { c.ConversationTTL = time.Minute }, "conversation_ttl"},
		{"max messages zero", func(c *TMAConfig) { c.MaxMessages = 0 }, "max_messages"},
		{"max conversations negative", func(c *TMAConfig) { c.MaxConversations = -1 }, "max_conversations"},
		{"conversations exceed messages", func(c *TMAConfig) { c.MaxConversations = c.MaxMessages + 1 }, "max_conversations"},
		{"absorb lock ttl zero", func(c *TMAConfig) { c.AbsorbLockTTL = 0 }, "absorb_lock_ttl"},
		{"init lock ttl zero", func(c *TMAConfig) { c.InitLockTTL = 0 }, "init_lock_ttl"},
		{"init done ttl zero", func(c *TMAConfig) { c.InitDoneTTL = 0 }, "init_done_ttl"},
		{"recent image window zero", func(c *TMAConfig) { c.RecentImageWindow = 0 }, "recent_image_window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "nil" {
				var c *TMAConfig
				require.Error(t, c.Validate())
				return
			}
			cfg := DefaultTMAConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUploadConfigValidate(t *testing.T) {
	cfg := DefaultUploadConfig()
	require.NoError(t, cfg.Validate())

	cfg.WorkerCount = 0
	require.Error(t, cfg.Validate())
}

func TestDispatchConfigValidate(t *testing.T) {
	cfg := DefaultDispatchConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.Concurrency)

	cfg.Concurrency = 0
	require.Error(t, cfg.Validate())
}

func TestAuditConfigValidate(t *testing.T) {
	cfg := DefaultAuditConfig()
	require.NoError(t, cfg.Validate())

	cfg.RetentionDays = 0
	require.Error(t, cfg.Validate())
}

func TestCoordinatorConfigValidate(t *testing.T) {
	cfg := DefaultCoordinatorConfig()
	require.NoError(t, cfg.Validate())

	cfg.Addr = ""
	require.Error(t, cfg.Validate())
}
