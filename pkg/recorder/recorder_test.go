package recorder

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_RedactsAndTruncates(t *testing.T) {
	ev := Event{
		ID:   "ev-1",
		Type: EventTypeAutomation,
		TS:   time.Now(),
		Tool: "run_shell",
		Args: map[string]interface{}{
			"command": "export API_KEY=sk-abcdefghijklmnopqrstuvwxyz123456 && run",
			"count":   float64(3),
			"big":     strings.Repeat("a", 10000),
		},
		Result: `{"status":"success","output":"password: hunter2-is-secret"}`,
	}

	out := Sanitize(ev, 512)

	assert.Contains(t, out.Args["command"], "[REDACTED]")
	assert.NotContains(t, out.Args["command"], "sk-abcdefghijklmnopqrstuvwxyz123456")
	assert.Equal(t, float64(3), out.Args["count"], "numeric args pass through")

	big := out.Args["big"].(string)
	assert.Less(t, len(big), 10000)
	assert.Contains(t, big, "[truncated]")

	assert.Contains(t, out.Result, "[REDACTED]")

	// Original event untouched.
	assert.Contains(t, ev.Args["command"], "sk-")
}

func TestSanitize_ZeroCapUsesDefault(t *testing.T) {
	ev := Event{Result: strings.Repeat("x", DefaultMaxEventBytes+100)}
	out := Sanitize(ev, 0)
	assert.LessOrEqual(t, len(out.Result), DefaultMaxEventBytes+len("... [truncated]"))
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	assert.False(t, r.Running())
	r.Enqueue(Event{Tool: "ignored"})
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, store.Running())

	store.Enqueue(Event{
		ID:     "ev-1",
		Type:   EventTypeAutomation,
		TS:     time.UnixMilli(1000),
		Tool:   "echo",
		Args:   map[string]interface{}{"x": "1"},
		Result: `{"status":"success"}`,
	})
	store.Enqueue(Event{
		ID:   "ev-2",
		Type: EventTypeAutomation,
		TS:   time.UnixMilli(2000),
		Tool: "fill",
	})

	events, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "ev-2", events[0].ID, "newest first")
	assert.Equal(t, "echo", events[1].Tool)
	assert.Equal(t, "1", events[1].Args["x"])
	assert.Equal(t, `{"status":"success"}`, events[1].Result)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)

	store.Close()
	store.Close()
	assert.False(t, store.Running())

	// Enqueue after close is a silent no-op.
	store.Enqueue(Event{ID: "late", Tool: "echo"})
}

func TestWSRecorder_LifecycleWithoutServer(t *testing.T) {
	r := NewWSRecorder("ws://127.0.0.1:1/nowhere")

	assert.False(t, r.Running())
	r.Enqueue(Event{Tool: "dropped-while-stopped"})

	r.Start()
	r.Start()
	assert.True(t, r.Running())

	// Delivery fails (nothing listens); the event is dropped silently.
	r.Enqueue(Event{Tool: "dropped-on-dial-failure"})

	r.Stop()
	r.Stop()
	assert.False(t, r.Running())
}
