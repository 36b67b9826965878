package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load reads config.yaml from the working directory and the process
// environment, so these tests chdir into a scratch dir and cannot run in
// parallel with each other.

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Empty(t, cfg.Gemini.APIKey)
	assert.Equal(t, DefaultGeminiModel, cfg.Gemini.Model)
	assert.Equal(t, DefaultBotReplyDelay, cfg.Bot.ReplyDelay)
	assert.Equal(t, DefaultBotEmptyQueryReply, cfg.Bot.EmptyQueryReply)
	assert.Equal(t, DefaultBotNoResponseReply, cfg.Bot.NoResponseReply)
	assert.Equal(t, DefaultUploadDir, cfg.Upload.Dir)
	assert.Equal(t, DefaultMaintenanceInterval, cfg.Scheduler.MaintenanceInterval)
}

func TestLoadFromConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	yaml := `
log:
  level: debug
  json: false
server:
  addr: ":9090"
bot:
  reply_delay: 250ms
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Bot.ReplyDelay)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path, "unset keys keep their defaults")
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, os.WriteFile("config.yaml", []byte("log:\n  level: debug\n"), 0o600))
	t.Setenv("CHATRELAY_LOG_LEVEL", "warn")
	t.Setenv("CHATRELAY_GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("CHATRELAY_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidateMissingRequiredField(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Database.Path = ""
	require.Error(t, cfg.Validate())
}
