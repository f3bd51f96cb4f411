package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// APIError represents a provider error with an HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// ErrBadCredentials marks authentication failures. Fatal: never retried.
var ErrBadCredentials = errors.New("invalid API credentials")

// IsFatal reports errors that retrying cannot fix.
func IsFatal(err error) bool {
	if errors.Is(err, ErrBadCredentials) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 400, 401, 403, 404:
			return true
		}
	}
	return false
}

// IsRetryable reports transient errors worth another attempt. Uses typed
// checks first, with a string fallback only for untyped errors from
// provider SDKs.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"rate limit",
		"resource exhausted",
		"unavailable",
		"connection reset",
		"eof",
		"tls handshake",
		"no such host",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
