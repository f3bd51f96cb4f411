package ai

import (
	"math/rand"
	"time"
)

// Backoff calculates exponential backoff with jitter for a retry attempt.
// Jitter avoids synchronized retries when several requests fail together.
func Backoff(baseDelay time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}
