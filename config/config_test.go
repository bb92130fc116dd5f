package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"ASSISTANT_BASE_URL", "ASSISTANT_GREETING_PATH", "ASSISTANT_CHAT_PATH", "ASSISTANT_LANGUAGE",
	"STORAGE_BACKEND", "STORAGE_FILE", "REDIS_ENDPOINT", "REDIS_KEY_PREFIX", "ALLOWED_TELEGRAM_ID", "LOG_LEVEL",
}

// clearEnv unsets the config variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_TELEGRAM_ID", "1,2")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Assistant.BaseURL)
	assert.Equal(t, "/api/greeting", cfg.Assistant.GreetingPath)
	assert.Equal(t, "/chat", cfg.Assistant.ChatPath)
	assert.Equal(t, StorageBackendFile, cfg.Storage.Backend)
	assert.Equal(t, "car_assistant_", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.AllowedTelegramID)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFromYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assistant:
  base_url: https://assistant.example.com
  language: darija
storage:
  backend: redis
  redis:
    endpoint: redis:6379
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://assistant.example.com", cfg.Assistant.BaseURL)
	assert.Equal(t, "darija", cfg.Assistant.Language)
	assert.Equal(t, StorageBackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Endpoint)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Assistant: Assistant{BaseURL: "http://localhost:8000"},
			Storage:   Storage{Backend: StorageBackendMemory},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultKeyPrefix, cfg.Storage.Redis.KeyPrefix)

	cfg = valid()
	cfg.Storage.Backend = "sqlite"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownStorageBackend)

	cfg = valid()
	cfg.Assistant.BaseURL = "localhost"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidBaseURL)

	cfg = valid()
	cfg.Assistant.Language = "klingon"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownLanguage)
}

func TestPathsPreferConfiguredValues(t *testing.T) {
	path, err := Storage{FilePath: "/tmp/state.json"}.StateFilePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/state.json", path)

	path, err = Log{File: "/tmp/chat.log"}.TUILogFile()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/chat.log", path)

	path, err = TUI{ExportPath: "/tmp/out.html"}.ExportFile()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.html", path)
}
