package uwb

import "context"

// Subscription is a live measurement feed.
//
// Events delivers results until the feed ends. Done is closed when the feed
// ends, either because Cancel was called or because the platform failed; in
// the latter case Err returns the failure. Cancel is idempotent, safe from
// any goroutine and never waits for in-flight delivery to drain.
type Subscription interface {
	ID() string
	Events() <-chan Event
	Done() <-chan struct{}
	Err() error
	Cancel()
}

// Radio is the platform radio stack as seen by the session manager.
//
// The Acquire calls block until the platform grants or denies a session
// scope; they must honor ctx. OpenFeed must not block on measurement
// delivery.
type Radio interface {
	AcquireControllerScope(ctx context.Context) (*Scope, error)
	AcquireControleeScope(ctx context.Context) (*Scope, error)
	OpenFeed(ctx context.Context, scope *Scope, params RangingParameters) (Subscription, error)
}

// AcquireScope dispatches to the acquisition call for role.
func AcquireScope(ctx context.Context, r Radio, role Role) (*Scope, error) {
	switch role {
	case RoleController:
		return r.AcquireControllerScope(ctx)
	case RoleControlee:
		return r.AcquireControleeScope(ctx)
	default:
		return nil, &Error{Kind: InvalidRole, Msg: role.String()}
	}
}
