package ringchan

import "sync/atomic"

// RingChannel is a bounded channel-like buffer with overwrite-oldest semantics.
//
// Producers never block: when the buffer is full the oldest element is
// discarded to make room. Consumers read from C() like a normal channel.
//
//	rc := ringchan.New[float32](1)
//	rc.Send(1.5)
//	rc.Send(2.5) // 1.5 is dropped
//	v := <-rc.C() // 2.5
//
// A capacity of 1 gives "latest value" semantics, which is what measurement
// watchers use.
//
// Send must not be called concurrently with Close. Concurrent producers may
// interleave on a full buffer; callers that need strict ordering serialize
// their sends.
type RingChannel[T any] struct {
	ch      chan T
	metrics Metrics
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel.
//
// Reads through C bypass the Processed counter.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an item, dropping the oldest one when the buffer is full.
// It never blocks. Returns true if an element was dropped.
func (rc *RingChannel[T]) Send(v T) bool {
	dropped := false

	for {
		select {
		case rc.ch <- v:
			rc.metrics.addWritten()
			return dropped
		default:
		}

		select {
		case <-rc.ch:
			rc.metrics.addOverwritten()
			dropped = true
		default:
			// a consumer drained the buffer between the two selects; retry
		}
	}
}

// TrySend attempts to insert without dropping anything.
// Returns false if the buffer is full.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		rc.metrics.addWritten()
		return true
	default:
		return false
	}
}

// Receive blocks until a value is available or the channel is closed.
func (rc *RingChannel[T]) Receive() (v T, ok bool) {
	v, ok = <-rc.ch
	if ok {
		rc.metrics.addProcessed()
	}
	return
}

// TryReceive attempts a non-blocking receive.
func (rc *RingChannel[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		if ok {
			rc.metrics.addProcessed()
		}
		return
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the channel capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel. Send after Close panics.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// Metrics returns a snapshot of the counters.
func (rc *RingChannel[T]) Metrics() Metrics {
	return Metrics{
		Processed:   atomic.LoadInt64(&rc.metrics.Processed),
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
	}
}

// Metrics holds lock-free counters for a RingChannel.
type Metrics struct {
	Processed   int64
	Written     int64
	Overwritten int64
}

func (m *Metrics) addProcessed() {
	atomic.AddInt64(&m.Processed, 1)
}

func (m *Metrics) addWritten() {
	atomic.AddInt64(&m.Written, 1)
}

func (m *Metrics) addOverwritten() {
	atomic.AddInt64(&m.Overwritten, 1)
}
