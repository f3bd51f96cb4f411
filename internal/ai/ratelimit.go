package ai

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a request rate limiter. Submissions consume one token;
// tokens refill continuously at the configured per-minute rate.
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a bucket allowing requestsPerMinute sustained.
func NewTokenBucket(requestsPerMinute int) *TokenBucket {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 50
	}
	max := float64(requestsPerMinute)
	return &TokenBucket{
		tokens:     max,
		maxTokens:  max,
		refillRate: max / 60.0,
		lastRefill: time.Now(),
	}
}

func (b *TokenBucket) refill() {
	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now
}

// TryAcquire consumes a token if one is available.
func (b *TokenBucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Acquire blocks until a token is available or ctx is cancelled.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		deficit := 1 - b.tokens
		wait := time.Duration(deficit / b.refillRate * float64(time.Second))
		b.mu.Unlock()

		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Return gives a token back, used when a request is cancelled before the
// provider saw it.
func (b *TokenBucket) Return() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens++
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
}
