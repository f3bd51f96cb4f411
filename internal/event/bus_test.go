package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(StatusMessage{Text: "hello"})

	ev := recv(t, ch)
	msg, ok := ev.(StatusMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", msg.Text)
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(PathChanged{Path: "/ws"})

	assert.Equal(t, PathChanged{Path: "/ws"}, recv(t, a))
	assert.Equal(t, PathChanged{Path: "/ws"}, recv(t, b))
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "cancel should close the channel")

	// Publishing after cancel must not panic.
	bus.Publish(StatusMessage{Text: "after"})
}

func TestSlowSubscriberGetsLagged(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	// Overfill the buffer without draining.
	for i := 0; i < defaultBuffer+10; i++ {
		bus.Publish(StatusMessage{Text: "flood"})
	}

	// Drain the buffered events.
	for i := 0; i < defaultBuffer; i++ {
		recv(t, ch)
	}

	// The next publish flushes the lag marker before the new event.
	bus.Publish(StatusMessage{Text: "recovered"})

	lag, ok := recv(t, ch).(Lagged)
	require.True(t, ok, "expected Lagged marker after overflow")
	assert.GreaterOrEqual(t, lag.Dropped, 10)

	msg, ok := recv(t, ch).(StatusMessage)
	require.True(t, ok)
	assert.Equal(t, "recovered", msg.Text)
}

func TestCloseTerminatesSubscribers(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe()

	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// Idempotent, and publish after close is a no-op.
	bus.Close()
	bus.Publish(StatusMessage{Text: "late"})
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()
	_, ok := <-ch
	assert.False(t, ok, "subscription on closed bus starts closed")
}
