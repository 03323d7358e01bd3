package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rconsole-project/rconsole/internal/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Server: "mc-prod", Command: "list", Response: "3 players", OK: true, Duration: 20 * time.Millisecond, ExecutedAt: base},
		{Server: "mc-prod", Command: "save-all", Response: "Saved", OK: true, Duration: 150 * time.Millisecond, ExecutedAt: base.Add(time.Minute)},
		{Server: "cs-eu", Command: "status", Error: "session busy", OK: false, Duration: time.Millisecond, ExecutedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, store.Record(e))
	}

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	t.Run("whole fleet, newest first", func(t *testing.T) {
		got, err := store.Recent("", 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "status", got[0].Command)
		assert.Equal(t, "save-all", got[1].Command)
		assert.Equal(t, "list", got[2].Command)
	})

	t.Run("filtered by server", func(t *testing.T) {
		got, err := store.Recent("mc-prod", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, e := range got {
			assert.Equal(t, "mc-prod", e.Server)
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		got, err := store.Recent("", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "status", got[0].Command)
	})
}

func TestRecordFillsDefaults(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Record(Entry{Server: "mc-prod", Command: "list", OK: true}))

	got, err := store.Recent("mc-prod", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].ExecutedAt.IsZero())
}

func TestRecordPreservesFields(t *testing.T) {
	store := openTestStore(t)

	want := Entry{
		ID:         "fixed-id",
		Server:     "cs-eu",
		Command:    "kick player",
		Response:   "kicked",
		Error:      "",
		OK:         true,
		Duration:   42 * time.Millisecond,
		ExecutedAt: time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, store.Record(want))

	got, err := store.Recent("cs-eu", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want.ID, got[0].ID)
	assert.Equal(t, want.Response, got[0].Response)
	assert.Equal(t, want.Duration, got[0].Duration)
	assert.True(t, want.ExecutedAt.Equal(got[0].ExecutedAt))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(Entry{Server: "a", Command: "list", OK: true}))
	require.NoError(t, store.Close())

	// Reopening must keep existing rows and apply no destructive migration.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubscribeEventsRecordsCommands(t *testing.T) {
	store := openTestStore(t)

	bus := events.NewEventBus()
	store.SubscribeEvents(bus)

	err := bus.EmitSync(context.Background(), events.Event{
		Type:   events.EventCommandExecuted,
		Source: "fleet",
		Payload: events.CommandPayload{
			Server:   "mc-prod",
			Command:  "weather clear",
			Response: "Set the weather to clear",
			OK:       true,
			Duration: 12 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	got, err := store.Recent("mc-prod", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "weather clear", got[0].Command)
	assert.True(t, got[0].OK)

	// Events with foreign payloads are ignored rather than failing the bus.
	err = bus.EmitSync(context.Background(), events.Event{
		Type:    events.EventCommandExecuted,
		Source:  "fleet",
		Payload: "not a command payload",
	})
	assert.NoError(t, err)
}
