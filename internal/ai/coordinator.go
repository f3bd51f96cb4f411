package ai

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"glance/internal/config"
	"glance/internal/event"
	"glance/internal/logging"
)

// Coordinator owns the lifecycle of model requests: queueing, retry,
// streaming, supersede and cancellation. At most one request is in flight
// per workspace; a newer submit cancels the older one.
type Coordinator struct {
	client  Client
	bus     *event.Bus
	retry   config.RetryConfig
	limiter *TokenBucket

	mu      sync.Mutex
	active  map[string]*inflight // keyed by workspace
	byID    map[string]*inflight
	history map[string]*exchange // last exchange per workspace
}

// exchange is the previous instruction/answer pair, folded into the next
// system prompt for follow-up questions.
type exchange struct {
	instruction string
	response    string
}

type inflight struct {
	req    Request
	cancel context.CancelFunc
	done   chan struct{}

	// mu orders chunk publication against Cancel: once cancelled is set,
	// no further chunk events for this id are published.
	mu        sync.Mutex
	cancelled bool
	status    Status
	text      strings.Builder
}

// Ticket identifies a submitted request.
type Ticket struct {
	ID   string
	Done <-chan struct{}
}

// NewCoordinator creates a request coordinator publishing on bus.
func NewCoordinator(client Client, bus *event.Bus, retry config.RetryConfig, limiter *TokenBucket) *Coordinator {
	return &Coordinator{
		client:  client,
		bus:     bus,
		retry:   retry,
		limiter: limiter,
		active:  make(map[string]*inflight),
		byID:    make(map[string]*inflight),
		history: make(map[string]*exchange),
	}
}

// Submit queues a request. Any unfinished request for the same workspace is
// cancelled first: a stale answer to a superseded question has no value.
func (c *Coordinator) Submit(req Request) (*Ticket, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &inflight{
		req:    req,
		cancel: cancel,
		done:   make(chan struct{}),
		status: StatusQueued,
	}

	c.mu.Lock()
	if prev, ok := c.active[req.Workspace]; ok {
		c.cancelLocked(prev)
	}
	c.active[req.Workspace] = r
	c.byID[req.ID] = r
	prevExchange := c.history[req.Workspace]
	c.mu.Unlock()

	c.setStatus(r, StatusQueued, "")
	go c.run(ctx, r, prevExchange)

	return &Ticket{ID: req.ID, Done: r.done}, nil
}

// Cancel stops a request by id. After Cancel returns, no further chunk
// events for that id are published.
func (c *Coordinator) Cancel(id string) {
	c.mu.Lock()
	r, ok := c.byID[id]
	if ok {
		c.cancelLocked(r)
	}
	c.mu.Unlock()
}

// Status returns the current status of a request id.
func (c *Coordinator) Status(id string) (Status, bool) {
	c.mu.Lock()
	r, ok := c.byID[id]
	c.mu.Unlock()
	if !ok {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, true
}

func (c *Coordinator) cancelLocked(r *inflight) {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
	r.cancel()
}

func (c *Coordinator) run(ctx context.Context, r *inflight, prev *exchange) {
	defer close(r.done)
	defer r.cancel()

	if c.limiter != nil && !c.limiter.TryAcquire() {
		logging.Debug("rate limited, waiting for a slot", "id", r.req.ID)
		if err := c.limiter.Acquire(ctx); err != nil {
			c.finish(r, StatusCancelled, "")
			return
		}
	}

	c.setStatus(r, StatusInFlight, "")

	system := systemPrompt(r.req, prev)
	user := r.req.Instruction

	attempt := 0
	for {
		status, reason, streamed := c.streamOnce(ctx, r, system, user)
		if status == StatusCompleted {
			c.finish(r, StatusCompleted, "")
			return
		}
		if status == StatusCancelled {
			if !streamed && c.limiter != nil {
				// The provider never produced output for this slot.
				c.limiter.Return()
			}
			c.finish(r, StatusCancelled, "")
			return
		}

		// Failures after streaming began are terminal: partial output is
		// already with the consumer and is not rolled back.
		if streamed || attempt >= c.retry.MaxAttempts-1 || !retryableReason(reason) {
			c.finish(r, StatusFailed, reason.Error())
			return
		}

		delay := Backoff(c.retry.InitialWait, attempt, c.retry.MaxWait)
		logging.Warn("request retrying", "id", r.req.ID, "attempt", attempt+1, "delay", delay, "error", reason)
		attempt++

		select {
		case <-ctx.Done():
			c.finish(r, StatusCancelled, "")
			return
		case <-time.After(delay):
		}
	}
}

// streamOnce performs one request attempt. Returns the resulting status, a
// failure reason, and whether any chunk was delivered before failing.
func (c *Coordinator) streamOnce(ctx context.Context, r *inflight, system, user string) (Status, error, bool) {
	stream, err := c.client.Stream(ctx, system, user)
	if err != nil {
		if ctx.Err() != nil {
			return StatusCancelled, nil, false
		}
		return StatusFailed, err, false
	}

	streamed := false
	for chunk := range stream.Chunks {
		if chunk.Err != nil {
			if ctx.Err() != nil {
				return StatusCancelled, nil, streamed
			}
			return StatusFailed, chunk.Err, streamed
		}
		if chunk.Text != "" {
			if !streamed {
				streamed = true
				c.setStatus(r, StatusStreaming, "")
			}
			if !c.publishChunk(r, chunk.Text) {
				return StatusCancelled, nil, streamed
			}
		}
		if chunk.Done {
			return StatusCompleted, nil, streamed
		}
	}

	if ctx.Err() != nil {
		return StatusCancelled, nil, streamed
	}
	// Channel closed without a Done marker; treat as complete.
	return StatusCompleted, nil, streamed
}

// publishChunk delivers one chunk event unless the request was cancelled.
func (c *Coordinator) publishChunk(r *inflight, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancelled {
		return false
	}
	r.text.WriteString(text)
	c.bus.Publish(ChunkReceived{RequestID: r.req.ID, Text: text})
	return true
}

func (c *Coordinator) setStatus(r *inflight, status Status, reason string) {
	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.status = status
	r.mu.Unlock()

	c.bus.Publish(StateChanged{
		RequestID: r.req.ID,
		Workspace: r.req.Workspace,
		Status:    status,
		Reason:    reason,
	})
}

func (c *Coordinator) finish(r *inflight, status Status, reason string) {
	c.setStatus(r, status, reason)

	r.mu.Lock()
	text := r.text.String()
	r.mu.Unlock()

	if status == StatusCompleted {
		c.mu.Lock()
		c.history[r.req.Workspace] = &exchange{
			instruction: r.req.Instruction,
			response:    text,
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	if c.active[r.req.Workspace] == r {
		delete(c.active, r.req.Workspace)
	}
	delete(c.byID, r.req.ID)
	c.mu.Unlock()

	c.bus.Publish(Completed{RequestID: r.req.ID, Status: status, Text: text})
}

func retryableReason(err error) bool {
	return err != nil && IsRetryable(err)
}

// Close cancels every in-flight request and releases the client.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	for _, r := range c.byID {
		c.cancelLocked(r)
	}
	c.mu.Unlock()
	return c.client.Close()
}
