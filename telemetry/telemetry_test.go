package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMemoryRingEvicts drops the oldest record once the limit is hit.
func TestMemoryRingEvicts(t *testing.T) {
	ring := NewMemory(3)
	for _, tool := range []string{"a", "b", "c", "d"} {
		ring.Emit(Event{Type: EventToolCall, Tool: tool})
	}
	events := ring.Events()
	require.Len(t, events, 3)
	require.Equal(t, "b", events[0].Tool)
	require.Equal(t, "d", events[2].Tool)
}

// TestMemoryStampsTimestamps fills a missing timestamp on emit.
func TestMemoryStampsTimestamps(t *testing.T) {
	ring := NewMemory(0)
	ring.Emit(Event{Type: EventSessionStart})
	require.False(t, ring.Events()[0].Timestamp.IsZero())
}

// TestMultiplexBroadcasts delivers each event to every sink.
func TestMultiplexBroadcasts(t *testing.T) {
	a := NewMemory(0)
	b := NewMemory(0)
	mux := Multiplex{Sinks: []Sink{a, b, Discard{}}}
	mux.Emit(Event{Type: EventModeChange, Message: "full"})
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
	require.Equal(t, "full", b.Events()[0].Message)
}

// TestJSONFileAppendsNDJSON writes one JSON object per line and appends
// across reopens.
func TestJSONFileAppendsNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")

	sink, err := NewJSONFile(path)
	require.NoError(t, err)
	sink.Emit(Event{Type: EventToolCall, Tool: "read_files"})
	require.NoError(t, sink.Close())

	sink, err = NewJSONFile(path)
	require.NoError(t, err)
	sink.Emit(Event{Type: EventToolResult, Tool: "read_files"})
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines = append(lines, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	require.Equal(t, EventToolCall, lines[0].Type)
	require.Equal(t, EventToolResult, lines[1].Type)
	require.False(t, lines[1].Timestamp.IsZero())
}
