package testutils

import (
	"context"
	"sync"

	"github.com/srg/uwbctl/internal/uwb"
	"github.com/stretchr/testify/mock"
)

// MockRadio is a testify mock of uwb.Radio for tests that need exact control
// over what the platform returns.
//
//	radio := &testutils.MockRadio{}
//	radio.On("AcquireControllerScope", mock.Anything).
//	    Return(uwb.NewControllerScope(addr, ch, nil), nil)
type MockRadio struct {
	mock.Mock
}

func (m *MockRadio) AcquireControllerScope(ctx context.Context) (*uwb.Scope, error) {
	args := m.Called(ctx)
	return scopeArg(args, 0), args.Error(1)
}

func (m *MockRadio) AcquireControleeScope(ctx context.Context) (*uwb.Scope, error) {
	args := m.Called(ctx)
	return scopeArg(args, 0), args.Error(1)
}

func (m *MockRadio) OpenFeed(ctx context.Context, scope *uwb.Scope, params uwb.RangingParameters) (uwb.Subscription, error) {
	args := m.Called(ctx, scope, params)
	if sub, ok := args.Get(0).(uwb.Subscription); ok {
		return sub, args.Error(1)
	}
	return nil, args.Error(1)
}

func scopeArg(args mock.Arguments, i int) *uwb.Scope {
	if s, ok := args.Get(i).(*uwb.Scope); ok {
		return s
	}
	return nil
}

// Subscription is a hand-driven uwb.Subscription.
//
// With KeepAliveOnCancel set, Cancel is recorded but the feed keeps
// delivering, which is how a platform that cancels asynchronously behaves.
type Subscription struct {
	KeepAliveOnCancel bool

	id     string
	events chan uwb.Event

	mu      sync.Mutex
	done    chan struct{}
	ended   bool
	err     error
	cancels int
}

// NewSubscription creates a subscription with room for buffer undelivered
// events.
func NewSubscription(id string, buffer int) *Subscription {
	return &Subscription{
		id:     id,
		events: make(chan uwb.Event, buffer),
		done:   make(chan struct{}),
	}
}

func (s *Subscription) ID() string { return s.id }
func (s *Subscription) Events() <-chan uwb.Event { return s.events }
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	if s.KeepAliveOnCancel || s.ended {
		return
	}
	s.ended = true
	close(s.done)
}

// Send delivers ev. It blocks when the buffer is full.
func (s *Subscription) Send(ev uwb.Event) {
	s.events <- ev
}

// End terminates the feed with err, which may be nil.
func (s *Subscription) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.err = err
	s.ended = true
	close(s.done)
}

// Cancels returns how many times Cancel was called.
func (s *Subscription) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

var (
	_ uwb.Radio        = (*MockRadio)(nil)
	_ uwb.Subscription = (*Subscription)(nil)
)
