package sim

import (
	"sync"

	"github.com/srg/uwbctl/internal/ringchan"
	"github.com/srg/uwbctl/internal/uwb"
)

// Feed is a simulated measurement subscription.
type Feed struct {
	id     string
	scope  *uwb.Scope
	params uwb.RangingParameters
	events *ringchan.RingChannel[uwb.Event]

	mu       sync.Mutex
	done     chan struct{}
	err      error
	canceled bool
	ended    bool
}

func newFeed(id string, scope *uwb.Scope, params uwb.RangingParameters, buffer int) *Feed {
	return &Feed{
		id:     id,
		scope:  scope,
		params: params,
		events: ringchan.New[uwb.Event](buffer),
		done:   make(chan struct{}),
	}
}

// ID implements uwb.Subscription.
func (f *Feed) ID() string { return f.id }

// Events implements uwb.Subscription.
func (f *Feed) Events() <-chan uwb.Event { return f.events.C() }

// Done implements uwb.Subscription.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Err implements uwb.Subscription.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Cancel implements uwb.Subscription. It never blocks and may be called any
// number of times.
func (f *Feed) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return
	}
	f.canceled = true
	f.ended = true
	close(f.done)
}

// Fail terminates the feed with a platform error.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return
	}
	f.err = err
	f.ended = true
	close(f.done)
}

// Inject delivers ev to the subscriber. Returns false once the feed has
// ended.
func (f *Feed) Inject(ev uwb.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return false
	}
	f.events.Send(ev)
	return true
}

// Canceled reports whether Cancel was called before the feed ended.
func (f *Feed) Canceled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled
}

// Ended reports whether the feed was canceled or failed.
func (f *Feed) Ended() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

// Params returns the ranging parameters the feed was opened with.
func (f *Feed) Params() uwb.RangingParameters { return f.params }

// Scope returns the scope the feed was opened on.
func (f *Feed) Scope() *uwb.Scope { return f.scope }

// Peer returns the single peer address of the feed.
func (f *Feed) Peer() uwb.Address {
	if len(f.params.Peers) == 0 {
		return uwb.Address{}
	}
	return f.params.Peers[0].Address
}

var _ uwb.Subscription = (*Feed)(nil)
