package eventlog

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Recorder receives session events. Implementations must be safe for
// concurrent use and must not block for long.
type Recorder interface {
	Record(ev Event)
}

// NoopRecorder discards all events.
type NoopRecorder struct{}

// Record discards the event.
func (NoopRecorder) Record(Event) {}

// MemoryRecorder keeps events in memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryRecorder creates an empty MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends the event.
func (m *MemoryRecorder) Record(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of everything recorded so far.
func (m *MemoryRecorder) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// OfKind returns the recorded events of kind k.
func (m *MemoryRecorder) OfKind(k Kind) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

// FileRecorder appends CBOR-encoded events to a file.
type FileRecorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// NewFileRecorder opens path for appending, creating it with 0644 if needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{
		file:    f,
		encoder: encMode.NewEncoder(f),
	}, nil
}

// Record writes the event. Encoding errors are dropped; recording must not
// disturb the session.
func (l *FileRecorder) Record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	_ = l.encoder.Encode(ev)
}

// Close closes the file. Later Record calls are ignored.
func (l *FileRecorder) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*MemoryRecorder)(nil)
	_ Recorder = (*FileRecorder)(nil)
)
