package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingAPIKey is returned by Validate when the active provider
// requires an API key and none is configured.
var ErrMissingAPIKey = errors.New("no API key configured for provider")

// Config represents the main application configuration.
// It is constructed once at startup and passed by reference to the
// components that need it.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Model     ModelConfig     `yaml:"model"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Extract   ExtractConfig   `yaml:"extract"`
	Context   ContextConfig   `yaml:"context"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Runtime version information
	Version string `yaml:"-"`
}

// APIConfig holds API-related settings.
type APIConfig struct {
	// Active provider: gemini or ollama (default: gemini)
	Provider string `yaml:"provider"`

	// Gemini API key (GLANCE_GEMINI_KEY / GEMINI_API_KEY also honored)
	GeminiKey string `yaml:"gemini_key,omitempty"`

	// Ollama server URL (default: http://localhost:11434)
	OllamaBaseURL string `yaml:"ollama_base_url,omitempty"`
}

// GetProvider returns the active provider name.
func (c *APIConfig) GetProvider() string {
	if c.Provider != "" {
		return c.Provider
	}
	return "gemini"
}

// ModelConfig holds model selection settings.
type ModelConfig struct {
	Name      string `yaml:"name"`
	MaxOutput int    `yaml:"max_output"`
}

// WatcherConfig holds file watcher settings.
type WatcherConfig struct {
	// Debounce window for coalescing rapid events on the same path.
	Debounce time.Duration `yaml:"debounce"`

	// MaxWatches bounds the number of directories registered with the OS.
	MaxWatches int `yaml:"max_watches"`

	// QueueSize bounds the internal raw event queue. Overflow collapses
	// pending events into a single resync batch.
	QueueSize int `yaml:"queue_size"`

	// BatchCeiling flushes a batch early once it reaches this many events.
	BatchCeiling int `yaml:"batch_ceiling"`

	// Ignore is a list of doublestar globs excluded from watching.
	Ignore []string `yaml:"ignore"`

	// RespectGitignore applies .gitignore rules from the watch root.
	RespectGitignore bool `yaml:"respect_gitignore"`

	// IncludeHidden includes dotfiles in listings and watch events.
	IncludeHidden bool `yaml:"include_hidden"`
}

// ExtractConfig holds content extraction settings.
type ExtractConfig struct {
	// MaxBytes truncates extracted text at this ceiling.
	MaxBytes int `yaml:"max_bytes"`

	// Wait bounds how long the context builder waits for an in-flight
	// extraction before substituting a placeholder.
	Wait time.Duration `yaml:"wait"`

	// ContentCacheSize bounds the number of extracted bodies kept in memory.
	ContentCacheSize int `yaml:"content_cache_size"`
}

// ContextConfig holds context assembly settings.
type ContextConfig struct {
	// TokenBudget caps the assembled context window.
	TokenBudget int `yaml:"token_budget"`
}

// RetryConfig holds retry settings for AI requests.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
}

// RateLimitConfig holds request rate limit settings.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File enables a rotating log file when non-empty.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Validate checks the configuration for fatal errors.
func (c *Config) Validate() error {
	switch c.API.GetProvider() {
	case "gemini":
		if c.API.GeminiKey == "" {
			return fmt.Errorf("%w: gemini", ErrMissingAPIKey)
		}
	case "ollama":
		// Local server, no key required.
	default:
		return fmt.Errorf("unknown provider: %s", c.API.Provider)
	}

	if c.Context.TokenBudget <= 0 {
		return fmt.Errorf("context.token_budget must be positive, got %d", c.Context.TokenBudget)
	}
	if c.Watcher.Debounce <= 0 {
		return fmt.Errorf("watcher.debounce must be positive, got %s", c.Watcher.Debounce)
	}
	return nil
}
