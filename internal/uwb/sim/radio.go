// Package sim is an in-process UWB radio stack. It implements uwb.Radio with
// scripted scopes and feeds so the session manager can run without hardware:
// the CLI drives it with a synthetic motion generator and tests inject
// events and failures directly.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/uwbctl/internal/uwb"
)

// Options configures a simulated radio.
type Options struct {
	LocalAddress uwb.Address
	// Channel is what the controller radio assigns.
	Channel      uwb.ComplexChannel
	Capabilities uwb.Capabilities
	// AcquireDelay simulates how long the platform takes to grant a scope.
	AcquireDelay time.Duration
	// Buffer is the per-feed event buffer; the oldest events are dropped
	// when a consumer falls behind.
	Buffer int
	// OnOpen is called with every newly opened feed.
	OnOpen func(*Feed)
}

// DefaultOptions returns a radio at short address 0x1234 assigning channel 9,
// preamble 11, with full controlee capabilities.
func DefaultOptions() *Options {
	return &Options{
		LocalAddress: uwb.AddressFromShort(0x1234),
		Channel:      uwb.ComplexChannel{Channel: 9, Preamble: 11},
		Capabilities: uwb.Capabilities{Distance: true, Azimuth: true, Elevation: false},
		Buffer:       32,
	}
}

// Radio is a simulated platform radio stack.
type Radio struct {
	opts   Options
	logger *logrus.Logger

	mu             sync.Mutex
	failAcquire    error
	failOpen       error
	forcedVariant  *uwb.Role
	feeds          []*Feed
	lastParams     *uwb.RangingParameters
	acquiring      int
	maxConcurrency int

	acquired atomic.Int64
	opened   atomic.Int64
}

// New creates a simulated radio. A nil opts uses DefaultOptions.
func New(opts *Options, logger *logrus.Logger) *Radio {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	o := *opts
	if o.Buffer <= 0 {
		o.Buffer = DefaultOptions().Buffer
	}
	return &Radio{opts: o, logger: logger}
}

// FailNextAcquire makes the next scope acquisition return err.
func (r *Radio) FailNextAcquire(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAcquire = err
}

// FailNextOpen makes the next OpenFeed return err.
func (r *Radio) FailNextOpen(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOpen = err
}

// ReturnScopeVariant forces every following acquisition to return a scope of
// the given role, regardless of which role was requested. It simulates a
// platform handing back the wrong session type.
func (r *Radio) ReturnScopeVariant(role uwb.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forcedVariant = &role
}

// SetOnOpen replaces the feed-open hook.
func (r *Radio) SetOnOpen(fn func(*Feed)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.OnOpen = fn
}

// AcquireControllerScope implements uwb.Radio.
func (r *Radio) AcquireControllerScope(ctx context.Context) (*uwb.Scope, error) {
	return r.acquire(ctx, uwb.RoleController)
}

// AcquireControleeScope implements uwb.Radio.
func (r *Radio) AcquireControleeScope(ctx context.Context) (*uwb.Scope, error) {
	return r.acquire(ctx, uwb.RoleControlee)
}

func (r *Radio) acquire(ctx context.Context, role uwb.Role) (*uwb.Scope, error) {
	r.mu.Lock()
	r.acquiring++
	if r.acquiring > r.maxConcurrency {
		r.maxConcurrency = r.acquiring
	}
	failErr := r.failAcquire
	r.failAcquire = nil
	variant := role
	if r.forcedVariant != nil {
		variant = *r.forcedVariant
	}
	delay := r.opts.AcquireDelay
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.acquiring--
		r.mu.Unlock()
	}()

	r.logger.WithField("role", role).Debug("Simulated radio acquiring session scope...")

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if failErr != nil {
		return nil, failErr
	}

	r.acquired.Add(1)
	handle := fmt.Sprintf("sim-scope-%d", r.acquired.Load())
	if variant == uwb.RoleController {
		return uwb.NewControllerScope(r.opts.LocalAddress, r.opts.Channel, handle), nil
	}
	return uwb.NewControleeScope(r.opts.LocalAddress, r.opts.Capabilities, handle), nil
}

// OpenFeed implements uwb.Radio.
func (r *Radio) OpenFeed(ctx context.Context, scope *uwb.Scope, params uwb.RangingParameters) (uwb.Subscription, error) {
	if scope == nil {
		return nil, errors.New("sim: open feed without scope")
	}
	if len(params.Peers) == 0 {
		return nil, errors.New("sim: ranging parameters have no peer")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if err := r.failOpen; err != nil {
		r.failOpen = nil
		r.mu.Unlock()
		return nil, err
	}
	f := newFeed(uuid.NewString(), scope, params, r.opts.Buffer)
	r.feeds = append(r.feeds, f)
	p := params
	r.lastParams = &p
	onOpen := r.opts.OnOpen
	r.mu.Unlock()

	r.opened.Add(1)
	r.logger.WithFields(logrus.Fields{
		"subscription": f.id,
		"session_id":   params.SessionID,
		"channel":      params.Channel.Channel,
		"preamble":     params.Channel.Preamble,
		"peer":         params.Peers[0].Address,
		"update_rate":  params.UpdateRate,
	}).Debug("Simulated radio opened measurement feed")

	if onOpen != nil {
		onOpen(f)
	}
	return f, nil
}

// Acquired returns the number of scopes granted.
func (r *Radio) Acquired() int {
	return int(r.acquired.Load())
}

// Opened returns the number of feeds opened.
func (r *Radio) Opened() int {
	return int(r.opened.Load())
}

// Canceled returns the number of feeds that have been canceled.
func (r *Radio) Canceled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.feeds {
		if f.Canceled() {
			n++
		}
	}
	return n
}

// Active returns the number of feeds that have neither been canceled nor
// failed.
func (r *Radio) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.feeds {
		if !f.Ended() {
			n++
		}
	}
	return n
}

// Feeds returns every feed opened so far, oldest first.
func (r *Radio) Feeds() []*Feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Feed(nil), r.feeds...)
}

// LastFeed returns the most recently opened feed, or nil.
func (r *Radio) LastFeed() *Feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.feeds) == 0 {
		return nil
	}
	return r.feeds[len(r.feeds)-1]
}

// LastParams returns the parameters of the most recent OpenFeed call.
func (r *Radio) LastParams() (uwb.RangingParameters, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastParams == nil {
		return uwb.RangingParameters{}, false
	}
	return *r.lastParams, true
}

// MaxConcurrentAcquires returns the highest number of acquisitions that
// were ever in progress at the same time.
func (r *Radio) MaxConcurrentAcquires() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxConcurrency
}

// Compile-time interface satisfaction check.
var _ uwb.Radio = (*Radio)(nil)
