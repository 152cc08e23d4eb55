package uwb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies ranging failures.
type ErrorKind string

const (
	// ScopeAcquisitionFailed: the platform denied or could not grant a session.
	ScopeAcquisitionFailed ErrorKind = "scope_acquisition_failed"
	// NotReady: ranging was requested before a scope was held.
	NotReady ErrorKind = "start_ranging_precondition_failed"
	// RoleScopeMismatch: a scope of the wrong role variant is present.
	RoleScopeMismatch ErrorKind = "role_scope_mismatch"
	// StreamError: an open feed failed.
	StreamError ErrorKind = "stream_error"
	// UnrecognizedEvent: the feed delivered an event kind the decoder ignores.
	UnrecognizedEvent ErrorKind = "unrecognized_event"
	// FeedOpenFailed: the platform rejected a ranging request.
	FeedOpenFailed ErrorKind = "feed_open_failed"
	// ChannelUnspecified: a controlee has neither caller-supplied nor
	// configured channel parameters.
	ChannelUnspecified ErrorKind = "channel_unspecified"
	InvalidRole        ErrorKind = "invalid_role"
	WorkerBusy         ErrorKind = "worker_busy"
	WorkerClosed       ErrorKind = "worker_closed"
	// PlatformUnavailable: the radio is off, missing or not permitted.
	PlatformUnavailable ErrorKind = "platform_unavailable"
)

// Error is a classified ranging error. errors.Is matches on Kind, so the
// package-level sentinels can be used as targets.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is allows errors.Is to compare Error values by Kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Sentinels for errors.Is.
var (
	ErrScopeAcquisitionFailed = &Error{Kind: ScopeAcquisitionFailed}
	ErrNotReady               = &Error{Kind: NotReady}
	ErrRoleScopeMismatch      = &Error{Kind: RoleScopeMismatch}
	ErrStreamError            = &Error{Kind: StreamError}
	ErrUnrecognizedEvent      = &Error{Kind: UnrecognizedEvent}
	ErrFeedOpenFailed         = &Error{Kind: FeedOpenFailed}
	ErrChannelUnspecified     = &Error{Kind: ChannelUnspecified}
	ErrInvalidRole            = &Error{Kind: InvalidRole}
	ErrWorkerBusy             = &Error{Kind: WorkerBusy}
	ErrWorkerClosed           = &Error{Kind: WorkerClosed}
	ErrPlatformUnavailable    = &Error{Kind: PlatformUnavailable}
)

// Wrap classifies err under kind for operation op. A nil err yields nil.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// NormalizeError maps well-known platform failure messages onto
// PlatformUnavailable so callers can tell "radio off" from other failures.
// Unknown errors pass through unchanged.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "uwb disabled"),
		strings.Contains(msg, "uwb is turned off"),
		strings.Contains(msg, "not supported on this device"),
		strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	default:
		return err
	}
}
