package logger

import (
	"encoding/json"
	"sync"
)

const defaultBufferSize = 1000

// Hub is the minimal interface the broadcaster needs from the event hub.
type Hub interface {
	Broadcast(msgType string, payload interface{}) error
}

// Entry is a parsed log entry for streaming.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Broadcaster implements io.Writer and forwards log entries to the hub.
// The hub can be attached after logger construction since it depends on
// the logger itself.
type Broadcaster struct {
	mu     sync.RWMutex
	hub    Hub
	buffer *RingBuffer[Entry]
}

// active is the process-wide broadcaster installed by New when streaming
// is enabled.
var (
	activeMu sync.Mutex
	active   *Broadcaster
)

// NewBroadcaster creates a broadcaster and registers it as the active one.
func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	b := &Broadcaster{buffer: NewRingBuffer[Entry](bufferSize)}
	activeMu.Lock()
	active = b
	activeMu.Unlock()
	return b
}

// AttachHub connects the event hub to the active broadcaster, if any.
func AttachHub(hub Hub) {
	activeMu.Lock()
	b := active
	activeMu.Unlock()
	if b == nil {
		return
	}
	b.mu.Lock()
	b.hub = hub
	b.mu.Unlock()
}

// RecentEntries returns the buffered log entries from the active broadcaster.
func RecentEntries() []Entry {
	activeMu.Lock()
	b := active
	activeMu.Unlock()
	if b == nil {
		return nil
	}
	return b.buffer.GetAll()
}

// Write implements io.Writer. It receives JSON log entries from zerolog.
func (b *Broadcaster) Write(p []byte) (int, error) {
	entry, err := parseEntry(p)
	if err != nil {
		return len(p), nil // malformed entries are dropped silently
	}

	b.buffer.Push(entry)

	b.mu.RLock()
	hub := b.hub
	b.mu.RUnlock()

	if hub != nil {
		_ = hub.Broadcast("logs:entry", entry)
	}

	return len(p), nil
}

func parseEntry(data []byte) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, err
	}

	entry := Entry{Fields: make(map[string]any)}

	if ts, ok := raw["time"].(string); ok {
		entry.Timestamp = ts
		delete(raw, "time")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = level
		delete(raw, "level")
	}
	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	for k, v := range raw {
		entry.Fields[k] = v
	}

	return entry, nil
}
