// Package ai issues model requests built from assembled context windows and
// streams the responses back, with retry, rate limiting, supersede and
// cooperative cancellation.
package ai

import (
	gocontext "context"

	buildctx "glance/internal/context"
)

// Request carries everything needed for one model round-trip.
type Request struct {
	ID          string
	Workspace   string
	Selected    []string
	Instruction string
	Window      *buildctx.Window
}

// Chunk is one streamed piece of a model response.
type Chunk struct {
	Text string
	Err  error
	Done bool
}

// StreamingResponse delivers response chunks in generation order. The
// channel is closed after the final chunk.
type StreamingResponse struct {
	Chunks <-chan Chunk
}

// Client is the interface a model provider implements.
type Client interface {
	// Stream sends a prompt and returns a streaming response. The stream
	// stops delivering chunks shortly after ctx is cancelled.
	Stream(ctx gocontext.Context, system, user string) (*StreamingResponse, error)

	// Model returns the model name in use.
	Model() string

	// Close releases the client's resources.
	Close() error
}

// Status is the lifecycle state of a request.
type Status int

const (
	StatusQueued Status = iota
	StatusInFlight
	StatusStreaming
	StatusCompleted
	StatusCancelled
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusInFlight:
		return "in_flight"
	case StatusStreaming:
		return "streaming"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// StateChanged is published on every request state transition.
type StateChanged struct {
	RequestID string
	Workspace string
	Status    Status
	Reason    string // set for failures
}

// ChunkReceived is published for every streamed text chunk.
type ChunkReceived struct {
	RequestID string
	Text      string
}

// Completed is published once per request after its terminal transition.
type Completed struct {
	RequestID string
	Status    Status
	Text      string // full accumulated response
}
