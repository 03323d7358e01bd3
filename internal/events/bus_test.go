package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitSyncRunsAllHandlers(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe(EventCommandExecuted, "test.handler", func(ctx context.Context, event Event) error {
			calls.Add(1)
			return nil
		})
	}
	assert.Equal(t, 3, bus.HandlerCount(EventCommandExecuted))

	err := bus.EmitSync(context.Background(), Event{Type: EventCommandExecuted, Source: "test"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmitSyncReturnsHandlerError(t *testing.T) {
	bus := NewEventBus()
	wantErr := errors.New("handler failed")

	bus.Subscribe(EventSessionFailed, "test.ok", func(ctx context.Context, event Event) error {
		return nil
	})
	bus.Subscribe(EventSessionFailed, "test.failing", func(ctx context.Context, event Event) error {
		return wantErr
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventSessionFailed, Source: "test"})
	assert.ErrorIs(t, err, wantErr)
}

func TestEmitDeliversPayload(t *testing.T) {
	bus := NewEventBus()

	got := make(chan Event, 1)
	bus.Subscribe(EventCommandExecuted, "test.capture", func(ctx context.Context, event Event) error {
		got <- event
		return nil
	})

	payload := CommandPayload{Server: "mc-prod", Command: "list", OK: true}
	bus.Emit(context.Background(), Event{Type: EventCommandExecuted, Source: "test", Payload: payload})

	select {
	case event := <-got:
		assert.Equal(t, payload, event.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestEmitIgnoresUnsubscribedType(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int32
	bus.Subscribe(EventSessionOpened, "test.handler", func(ctx context.Context, event Event) error {
		calls.Add(1)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventSessionClosed, Source: "test"})
	bus.Stop()
	assert.Zero(t, calls.Load())
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe(EventShutdown, "test.panicking", func(ctx context.Context, event Event) error {
		panic("boom")
	})

	require.NotPanics(t, func() {
		err := bus.EmitSync(context.Background(), Event{Type: EventShutdown, Source: "test"})
		assert.NoError(t, err)
	})
}

func TestStopRejectsNewEvents(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int32
	bus.Subscribe(EventShutdown, "test.handler", func(ctx context.Context, event Event) error {
		calls.Add(1)
		return nil
	})

	bus.Stop()
	bus.Emit(context.Background(), Event{Type: EventShutdown, Source: "test"})
	assert.Zero(t, calls.Load())

	err := bus.EmitSync(context.Background(), Event{Type: EventShutdown, Source: "test"})
	assert.NoError(t, err)
	assert.Zero(t, calls.Load())
}
