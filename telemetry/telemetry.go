// Package telemetry emits structured events for tool calls, session
// lifecycle and permission decisions.
package telemetry

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// EventType categorizes telemetry events.
type EventType string

const (
	EventToolCall       EventType = "tool_call"
	EventToolResult     EventType = "tool_result"
	EventToolError      EventType = "tool_error"
	EventSessionStart   EventType = "session_start"
	EventSessionExit    EventType = "session_exit"
	EventPermissionDeny EventType = "permission_deny"
	EventModeChange     EventType = "mode_change"
	EventSelectorUpdate EventType = "selector_update"
)

// Event is one structured telemetry record.
type Event struct {
	Type      EventType      `json:"type"`
	Tool      string         `json:"tool,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(event Event)
}

// Multiplex broadcasts events to several sinks.
type Multiplex struct {
	Sinks []Sink
}

// Emit forwards the event to every registered sink.
func (m Multiplex) Emit(event Event) {
	for _, s := range m.Sinks {
		s.Emit(event)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(Event) {}

// JSONFile writes events as newline-delimited JSON so external tools can tail
// the stream.
type JSONFile struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONFile opens (or creates) the log file in append mode.
func NewJSONFile(path string) (*JSONFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONFile{file: f, enc: json.NewEncoder(f)}, nil
}

// Emit appends one record. Encoding failures are dropped silently; telemetry
// must never fail a tool call.
func (j *JSONFile) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(event)
}

// Close flushes and closes the underlying file.
func (j *JSONFile) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Memory retains events in a bounded ring for tests and the console UI.
type Memory struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

// NewMemory builds a ring holding at most limit events (2048 when zero).
func NewMemory(limit int) *Memory {
	if limit == 0 {
		limit = 2048
	}
	return &Memory{events: make([]Event, 0, limit), limit: limit}
}

// Emit appends, evicting the oldest record when full.
func (m *Memory) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == m.limit {
		m.events = m.events[1:]
	}
	m.events = append(m.events, event)
}

// Events returns a copy of the retained records.
func (m *Memory) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Event(nil), m.events...)
}
