package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gemini", cfg.API.Provider)
	assert.Equal(t, DefaultModel, cfg.Model.Name)
	assert.Equal(t, DefaultDebounce, cfg.Watcher.Debounce)
	assert.Equal(t, DefaultTokenBudget, cfg.Context.TokenBudget)
	assert.Equal(t, DefaultExtractMaxBytes, cfg.Extract.MaxBytes)
	assert.True(t, cfg.Watcher.RespectGitignore)
	assert.NotEmpty(t, cfg.Watcher.Ignore)
}

func TestValidate(t *testing.T) {
	t.Run("gemini requires key", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("gemini with key passes", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.API.GeminiKey = "test-key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.API.Provider = "ollama"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.API.Provider = "bogus"
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive budget", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.API.Provider = "ollama"
		cfg.Context.TokenBudget = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive debounce", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.API.Provider = "ollama"
		cfg.Watcher.Debounce = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
api:
  provider: ollama
  ollama_base_url: http://localhost:9999
model:
  name: llama3
watcher:
  debounce: 500ms
context:
  token_budget: 8000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.API.Provider)
	assert.Equal(t, "http://localhost:9999", cfg.API.OllamaBaseURL)
	assert.Equal(t, "llama3", cfg.Model.Name)
	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.Debounce)
	assert.Equal(t, 8000, cfg.Context.TokenBudget)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultExtractMaxBytes, cfg.Extract.MaxBytes)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Model.Name)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GLANCE_PROVIDER", "ollama")
	t.Setenv("GLANCE_MODEL", "qwen2")
	t.Setenv("GLANCE_DEBOUNCE", "321ms")
	t.Setenv("GLANCE_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.API.Provider)
	assert.Equal(t, "qwen2", cfg.Model.Name)
	assert.Equal(t, 321*time.Millisecond, cfg.Watcher.Debounce)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadGeminiKeyFallback(t *testing.T) {
	t.Setenv("GLANCE_GEMINI_KEY", "")
	t.Setenv("GEMINI_API_KEY", "fallback-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fallback-key", cfg.API.GeminiKey)
}

func TestLoadExpandsEnvInFile(t *testing.T) {
	t.Setenv("TEST_GLANCE_KEY", "expanded-secret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  gemini_key: $TEST_GLANCE_KEY\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.API.GeminiKey)
}
