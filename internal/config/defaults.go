package config

import "time"

// Default configuration values.
const (
	DefaultModel     = "gemini-2.5-flash"
	DefaultMaxOutput = 4096

	DefaultDebounce     = 200 * time.Millisecond
	DefaultMaxWatches   = 1000
	DefaultQueueSize    = 1024
	DefaultBatchCeiling = 128

	DefaultExtractMaxBytes  = 200 * 1024
	DefaultExtractWait      = 2 * time.Second
	DefaultContentCacheSize = 256

	DefaultTokenBudget = 16000

	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultRequestsPer = 50

	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
)

// DefaultIgnores are directory globs that are never watched.
var DefaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/target/**",
	"**/dist/**",
	"**/build/**",
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Provider:      "gemini",
			OllamaBaseURL: "http://localhost:11434",
		},
		Model: ModelConfig{
			Name:      DefaultModel,
			MaxOutput: DefaultMaxOutput,
		},
		Watcher: WatcherConfig{
			Debounce:         DefaultDebounce,
			MaxWatches:       DefaultMaxWatches,
			QueueSize:        DefaultQueueSize,
			BatchCeiling:     DefaultBatchCeiling,
			Ignore:           append([]string(nil), DefaultIgnores...),
			RespectGitignore: true,
		},
		Extract: ExtractConfig{
			MaxBytes:         DefaultExtractMaxBytes,
			Wait:             DefaultExtractWait,
			ContentCacheSize: DefaultContentCacheSize,
		},
		Context: ContextConfig{
			TokenBudget: DefaultTokenBudget,
		},
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxRetries,
			InitialWait: DefaultRetryDelay,
			MaxWait:     DefaultMaxDelay,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: DefaultRequestsPer,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
	}
}
