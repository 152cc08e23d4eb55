package ranging

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/srg/uwbctl/internal/ringchan"
)

const (
	// StatusUnset is what address/channel/preamble read before a session
	// has been set up.
	StatusUnset = "N/A"
	// StatusError is what address/channel/preamble read after a failed
	// role assignment.
	StatusError = "Error"
)

// Cell is a single atomically published value with any number of watchers.
// Readers never observe a torn value and publishers never block on slow
// watchers: each watcher keeps only its most recent values.
type Cell[T any] struct {
	def   T
	value atomic.Pointer[T]

	// mu orders publishes so every watcher ends on the value Load returns.
	mu       sync.Mutex
	watchers *hashmap.Map[uint64, *watcher[T]]
	nextID   atomic.Uint64
}

type watcher[T any] struct {
	mu     sync.Mutex
	closed bool
	ch     *ringchan.RingChannel[T]
}

func (w *watcher[T]) send(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.ch.Send(v)
	}
}

func (w *watcher[T]) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		w.ch.Close()
	}
}

// NewCell creates a cell holding def.
func NewCell[T any](def T) *Cell[T] {
	c := &Cell[T]{
		def:      def,
		watchers: hashmap.New[uint64, *watcher[T]](),
	}
	v := def
	c.value.Store(&v)
	return c
}

// Load returns the current value.
func (c *Cell[T]) Load() T {
	return *c.value.Load()
}

// Default returns the value the cell was created with.
func (c *Cell[T]) Default() T {
	return c.def
}

// Store publishes v and notifies every watcher.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value.Store(&v)
	c.watchers.Range(func(_ uint64, w *watcher[T]) bool {
		w.send(v)
		return true
	})
}

// Reset publishes the default value.
func (c *Cell[T]) Reset() {
	c.Store(c.def)
}

// Watch returns a channel that receives the current value immediately and
// every later one. buffer bounds how many unread values are kept; the oldest
// are dropped first. The returned cancel func closes the channel and may be
// called more than once.
func (c *Cell[T]) Watch(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	w := &watcher[T]{ch: ringchan.New[T](buffer)}
	id := c.nextID.Add(1)

	// a concurrent Store must not be overtaken by an older initial value
	c.mu.Lock()
	c.watchers.Set(id, w)
	w.send(c.Load())
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.watchers.Del(id)
			w.close()
		})
	}
	return w.ch.C(), cancel
}

// Watchers returns the number of registered watchers.
func (c *Cell[T]) Watchers() int {
	return c.watchers.Len()
}

// MeasurementState is the observable output of a Manager.
type MeasurementState struct {
	// Distance is the last distance sample in meters.
	Distance *Cell[float32]
	// Azimuth is the last azimuth sample in degrees.
	Azimuth *Cell[float32]

	Address  *Cell[string]
	Channel  *Cell[string]
	Preamble *Cell[string]

	// Connected is true while the peer answers and false after it has been
	// reported disconnected.
	Connected *Cell[bool]
	// Ranging is true while a subscription is open.
	Ranging *Cell[bool]
}

// NewMeasurementState creates a state with every cell at its default.
func NewMeasurementState() *MeasurementState {
	return &MeasurementState{
		Distance:  NewCell[float32](0),
		Azimuth:   NewCell[float32](0),
		Address:   NewCell(StatusUnset),
		Channel:   NewCell(StatusUnset),
		Preamble:  NewCell(StatusUnset),
		Connected: NewCell(false),
		Ranging:   NewCell(false),
	}
}

// Snapshot is a point-in-time copy of a MeasurementState. Cells are read one
// by one, so a snapshot taken during an update may mix old and new values.
type Snapshot struct {
	Distance  float32 `yaml:"distance"`
	Azimuth   float32 `yaml:"azimuth"`
	Address   string  `yaml:"address"`
	Channel   string  `yaml:"channel"`
	Preamble  string  `yaml:"preamble"`
	Connected bool    `yaml:"connected"`
	Ranging   bool    `yaml:"ranging"`
}

func (s Snapshot) String() string {
	return fmt.Sprintf("address=%s channel=%s preamble=%s distance=%.2f azimuth=%.1f connected=%t ranging=%t",
		s.Address, s.Channel, s.Preamble, s.Distance, s.Azimuth, s.Connected, s.Ranging)
}

// Snapshot reads every cell.
func (s *MeasurementState) Snapshot() Snapshot {
	return Snapshot{
		Distance:  s.Distance.Load(),
		Azimuth:   s.Azimuth.Load(),
		Address:   s.Address.Load(),
		Channel:   s.Channel.Load(),
		Preamble:  s.Preamble.Load(),
		Connected: s.Connected.Load(),
		Ranging:   s.Ranging.Load(),
	}
}

// ResetStream clears what belongs to the measurement stream. Address,
// channel and preamble describe the session and are kept.
func (s *MeasurementState) ResetStream() {
	s.Distance.Reset()
	s.Azimuth.Reset()
	s.Connected.Reset()
	s.Ranging.Reset()
}

// SetStatusError marks address, channel and preamble as failed.
func (s *MeasurementState) SetStatusError() {
	s.Address.Store(StatusError)
	s.Channel.Store(StatusError)
	s.Preamble.Store(StatusError)
}

// setSession publishes the session description.
func (s *MeasurementState) setSession(address, channel, preamble string) {
	s.Address.Store(address)
	s.Channel.Store(channel)
	s.Preamble.Store(preamble)
}
