package ranging

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
	"github.com/srg/uwbctl/internal/eventlog"
	"github.com/srg/uwbctl/internal/groutine"
	"github.com/srg/uwbctl/internal/uwb"
	"github.com/srg/uwbctl/pkg/config"
)

// Options configures a Manager.
type Options struct {
	Config *config.Config
	Logger *logrus.Logger
	// Recorder receives lifecycle and failure events. Nil discards them.
	Recorder eventlog.Recorder
	// OnError is called with every reported error. It runs on the goroutine
	// that hit the error and must not call back into the Manager's role
	// methods.
	OnError func(error)
}

// DefaultOptions returns options with the default configuration.
func DefaultOptions() *Options {
	return &Options{
		Config:   config.DefaultConfig(),
		Logger:   logrus.New(),
		Recorder: eventlog.NoopRecorder{},
	}
}

// Manager is the ranging session lifecycle controller. It holds at most one
// session scope and at most one open subscription. Create one per radio and
// pass it to whatever needs it.
type Manager struct {
	radio  uwb.Radio
	cfg    *config.Config
	logger *logrus.Logger
	report *reporter

	state      *MeasurementState
	negotiator *Negotiator
	decoder    *Decoder

	ctx    context.Context
	cancel context.CancelFunc
	worker *roleWorker
	closed atomic.Bool

	// roleMu serializes role assignments.
	roleMu sync.Mutex

	// Lock order: roleMu, subMu, scopeMu.
	scopeMu sync.RWMutex
	scope   *uwb.Scope

	subMu      sync.Mutex
	sub        uwb.Subscription
	stopRunner context.CancelFunc
	generation atomic.Uint64

	// publishMu makes a runner's generation check and its cell writes one
	// step with respect to a generation bump. Runners hold it shared; taken
	// after subMu.
	publishMu sync.RWMutex
}

// NewManager creates a Manager on top of radio. A nil opts uses
// DefaultOptions; nil fields fall back to their defaults.
func NewManager(radio uwb.Radio, opts *Options) *Manager {
	if opts == nil {
		opts = DefaultOptions()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = eventlog.NoopRecorder{}
	}

	state := NewMeasurementState()
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		radio:  radio,
		cfg:    cfg,
		logger: logger,
		report: &reporter{
			logger:   logger,
			recorder: recorder,
			onError:  opts.OnError,
			runID:    uuid.NewString(),
		},
		state:      state,
		negotiator: NewNegotiator(state),
		decoder:    NewDecoder(state, logger),
		ctx:        ctx,
		cancel:     cancel,
	}
	m.worker = newRoleWorker(ctx, cfg.RoleQueueSize, m.SetRole, logger)
	return m
}

// State returns the published measurement state.
func (m *Manager) State() *MeasurementState {
	return m.state
}

// RunID identifies this manager's entries in the event log.
func (m *Manager) RunID() string {
	return m.report.runID
}

// Role returns the role of the held scope. ok is false when no scope is
// held.
func (m *Manager) Role() (role uwb.Role, ok bool) {
	m.scopeMu.RLock()
	defer m.scopeMu.RUnlock()
	if m.scope == nil {
		return 0, false
	}
	return m.scope.Role, true
}

func (m *Manager) currentScope() *uwb.Scope {
	m.scopeMu.RLock()
	defer m.scopeMu.RUnlock()
	return m.scope
}

func (m *Manager) setScope(s *uwb.Scope) {
	m.scopeMu.Lock()
	defer m.scopeMu.Unlock()
	m.scope = s
}

func (m *Manager) closedError(op string) error {
	return &uwb.Error{Kind: uwb.WorkerClosed, Op: op, Msg: "manager closed"}
}

// SetRole discards the current session and acquires a new scope for role.
// It blocks until the radio answers or the acquire timeout expires, so call
// it from a worker or use SetRoleAsync.
//
// A running subscription is canceled first. On failure the address, channel
// and preamble cells read StatusError and no scope is held until a later
// SetRole succeeds. The error is also reported; callers that only observe
// state may ignore it.
func (m *Manager) SetRole(ctx context.Context, role uwb.Role) error {
	const op = "set_role"

	if m.closed.Load() {
		return m.closedError(op)
	}
	fields := logrus.Fields{"role": role}
	if !role.Valid() {
		err := &uwb.Error{Kind: uwb.InvalidRole, Op: op, Msg: role.String()}
		m.report.error("Invalid role", err, fields, eventlog.Event{Kind: eventlog.KindRoleFailed, Op: op})
		return err
	}

	m.roleMu.Lock()
	defer m.roleMu.Unlock()

	m.subMu.Lock()
	m.cancelSubscriptionLocked(op, true)
	m.setScope(nil)
	m.subMu.Unlock()

	if m.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.AcquireTimeout)
		defer cancel()
	}

	m.logger.WithFields(fields).Debug("Acquiring session scope...")
	scope, err := uwb.AcquireScope(ctx, m.radio, role)
	if err != nil {
		err = uwb.Wrap(uwb.ScopeAcquisitionFailed, op, uwb.NormalizeError(err))
		m.state.SetStatusError()
		m.report.error("Failed to acquire session scope", err, fields,
			eventlog.Event{Kind: eventlog.KindRoleFailed, Op: op, Role: role.String()})
		return err
	}

	if err := scope.Validate(role); err != nil {
		var e *uwb.Error
		if errors.As(err, &e) {
			e.Op = op
		}
		m.state.SetStatusError()
		m.report.error("Radio returned a scope for the wrong role", err, fields,
			eventlog.Event{Kind: eventlog.KindInvariant, Op: op, Role: role.String()})
		return err
	}

	// Close may have run while the radio was answering.
	if m.closed.Load() {
		return m.closedError(op)
	}
	m.setScope(scope)

	var seeded *uwb.ComplexChannel
	switch role {
	case uwb.RoleController:
		seeded = &scope.Controller.Channel
	case uwb.RoleControlee:
		if fb := FallbackHint(m.cfg.Controlee); fb.Valid {
			ch := fb.channel()
			seeded = &ch
		}
	}
	m.negotiator.Seed(scope, seeded)

	fields["address"] = scope.LocalAddress
	ev := eventlog.Event{Kind: eventlog.KindRoleSet, Op: op, Role: role.String(), Address: scope.LocalAddress.String()}
	if seeded != nil {
		fields["channel"] = seeded.Channel
		fields["preamble"] = seeded.Preamble
		ev.Channel = seeded.Channel
		ev.Preamble = seeded.Preamble
	}
	m.report.info("Role set", fields, ev)
	return nil
}

// SetRoleAsync runs SetRole on the manager's role worker and calls
// completion exactly once with its result. Requests run one at a time in
// submission order. When the queue is full completion receives WorkerBusy;
// after Close it receives WorkerClosed.
func (m *Manager) SetRoleAsync(role uwb.Role, completion func(error)) {
	m.worker.submit(role, completion)
}

// SwitchRole sets role unless it is already in effect with a usable
// address. It reports whether a role assignment was performed.
func (m *Manager) SwitchRole(ctx context.Context, role uwb.Role) (bool, error) {
	current, ok := m.Role()
	addr := m.state.Address.Load()
	if ok && current == role && addr != StatusUnset && addr != StatusError {
		m.logger.WithField("role", role).Debug("Role unchanged, keeping session")
		return false, nil
	}
	return true, m.SetRole(ctx, role)
}

// StartRanging opens a measurement subscription to peer, replacing any open
// one. A controller ranges on its assigned channel and ignores channel and
// preamble; a controlee uses them as given.
//
// Without a held scope the call reports NotReady and changes nothing. If
// the radio rejects the request, the previous subscription is already
// canceled and the published values are left as they were.
func (m *Manager) StartRanging(ctx context.Context, peer uint16, channel, preamble int) error {
	return m.startRanging(ctx, peer, Hint(channel, preamble))
}

// StartRangingDefault is StartRanging without caller channel parameters. A
// controlee uses the configured fallback and fails with ChannelUnspecified
// if there is none.
func (m *Manager) StartRangingDefault(ctx context.Context, peer uint16) error {
	return m.startRanging(ctx, peer, ChannelHint{})
}

func (m *Manager) startRanging(ctx context.Context, peer uint16, hint ChannelHint) error {
	const op = "start_ranging"

	if m.closed.Load() {
		return m.closedError(op)
	}

	peerAddr := uwb.AddressFromShort(peer)
	fields := logrus.Fields{"peer": peerAddr}

	m.subMu.Lock()
	defer m.subMu.Unlock()

	scope := m.currentScope()
	if scope == nil {
		err := &uwb.Error{Kind: uwb.NotReady, Op: op, Msg: "no session scope, set a role first"}
		m.report.warn("Ranging not started", err, fields,
			eventlog.Event{Kind: eventlog.KindNotReady, Op: op, Peer: peerAddr.String()})
		return err
	}
	role := scope.Role
	fields["role"] = role

	ch, err := Negotiate(role, scope, hint, FallbackHint(m.cfg.Controlee))
	if err != nil {
		var e *uwb.Error
		if errors.As(err, &e) {
			e.Op = op
		}
		kind := eventlog.KindRangingFailed
		if errors.Is(err, uwb.ErrRoleScopeMismatch) {
			kind = eventlog.KindInvariant
		}
		m.report.error("Cannot negotiate ranging channel", err, fields,
			eventlog.Event{Kind: kind, Op: op, Role: role.String(), Peer: peerAddr.String()})
		return err
	}

	params := BuildParameters(scope.LocalAddress, ch, peerAddr)
	fields["channel"] = ch.Channel
	fields["preamble"] = ch.Preamble
	fields["session_id"] = params.SessionID

	// The replaced subscription's last samples stay published until the new
	// one delivers.
	m.cancelSubscriptionLocked(op, false)
	gen := m.generation.Add(1)
	fields["generation"] = gen

	sub, err := m.radio.OpenFeed(ctx, scope, params)
	if err != nil {
		err = uwb.Wrap(uwb.FeedOpenFailed, op, uwb.NormalizeError(err))
		m.state.Ranging.Store(false)
		m.report.error("Failed to start ranging", err, fields, eventlog.Event{
			Kind: eventlog.KindRangingFailed, Op: op, Role: role.String(), Peer: peerAddr.String(),
			Channel: ch.Channel, Preamble: ch.Preamble, SessionID: params.SessionID, Generation: gen,
		})
		return err
	}
	fields["subscription"] = sub.ID()

	runCtx, stop := context.WithCancel(m.ctx)
	m.sub = sub
	m.stopRunner = stop
	groutine.Go(runCtx, "uwb-ranging-"+sub.ID(), func(ctx context.Context) {
		m.runSubscription(ctx, sub, gen)
	})

	m.state.setSession(scope.LocalAddress.String(), strconv.Itoa(ch.Channel), strconv.Itoa(ch.Preamble))
	m.state.Ranging.Store(true)

	m.report.info("Ranging started", fields, eventlog.Event{
		Kind: eventlog.KindRangingStarted, Op: op, Role: role.String(),
		SubscriptionID: sub.ID(), Generation: gen,
		Address: scope.LocalAddress.String(), Peer: peerAddr.String(),
		Channel: ch.Channel, Preamble: ch.Preamble, SessionID: params.SessionID,
	})
	return nil
}

// StopRanging cancels the open subscription and resets distance and azimuth
// to 0. Address, channel and preamble are kept. Calling it with nothing
// open is a no-op.
func (m *Manager) StopRanging() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if !m.cancelSubscriptionLocked("stop_ranging", true) {
		m.report.debug("No active ranging to stop", nil, nil)
	}
}

// cancelSubscriptionLocked cancels the open subscription, if any, without
// waiting for it to drain. Events it still delivers carry a stale
// generation and are discarded. reset also clears the stream cells. Must
// hold subMu.
func (m *Manager) cancelSubscriptionLocked(op string, reset bool) bool {
	if m.sub == nil {
		return false
	}

	sub := m.sub
	m.sub = nil
	m.publishMu.Lock()
	gen := m.generation.Add(1)
	if reset {
		m.state.ResetStream()
	}
	m.publishMu.Unlock()
	m.stopRunner()
	m.stopRunner = nil
	sub.Cancel()

	m.report.info("Ranging stopped", logrus.Fields{"subscription": sub.ID(), "generation": gen},
		eventlog.Event{Kind: eventlog.KindRangingStopped, Op: op, SubscriptionID: sub.ID(), Generation: gen})
	return true
}

func (m *Manager) runSubscription(ctx context.Context, sub uwb.Subscription, gen uint64) {
	log := m.logger.WithFields(logrus.Fields{"subscription": sub.ID(), "generation": gen})
	log.Debug("Subscription runner started")
	defer log.Debug("Subscription runner stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				m.subscriptionEnded(sub, gen)
				return
			}
			if !m.dispatch(sub, gen, ev) {
				return
			}
		case <-sub.Done():
			m.subscriptionEnded(sub, gen)
			return
		}
	}
}

// dispatch decodes one event. It returns false when the runner must stop.
func (m *Manager) dispatch(sub uwb.Subscription, gen uint64, ev uwb.Event) bool {
	var (
		upd Update
		err error
		pc  panics.Catcher
	)

	m.publishMu.RLock()
	stale := m.generation.Load() != gen
	if !stale {
		pc.Try(func() { upd, err = m.decoder.Handle(ev) })
	}
	m.publishMu.RUnlock()

	if stale {
		m.report.debug("Discarding stale "+ev.String(),
			logrus.Fields{"subscription": sub.ID(), "generation": gen}, nil)
		return true
	}
	if r := pc.Recovered(); r != nil {
		m.streamFailed(sub, gen, r.AsError())
		sub.Cancel()
		return false
	}

	fields := logrus.Fields{"subscription": sub.ID(), "generation": gen, "peer": ev.Peer}
	base := eventlog.Event{Op: "ranging", SubscriptionID: sub.ID(), Generation: gen, Peer: ev.Peer.String()}

	switch {
	case err != nil:
		base.Kind = eventlog.KindUnrecognized
		m.report.warn("Ignoring unrecognized ranging event", err, fields, base)
	case upd.Kind == uwb.EventPeerDisconnected:
		base.Kind = eventlog.KindPeerDisconnected
		m.report.warn("Peer disconnected", nil, fields, base)
	case upd.Kind == uwb.EventPosition && m.cfg.RecordMeasurements:
		base.Kind = eventlog.KindMeasurement
		base.Distance = upd.Distance
		base.Azimuth = upd.Azimuth
		m.report.record(base)
	}
	return true
}

// subscriptionEnded handles a feed that terminated. A failure is reported
// once and the subscription is dropped; it is not reopened. Feeds the
// manager canceled itself are no longer current and are ignored.
func (m *Manager) subscriptionEnded(sub uwb.Subscription, gen uint64) {
	if err := sub.Err(); err != nil {
		m.streamFailed(sub, gen, err)
		return
	}

	m.subMu.Lock()
	defer m.subMu.Unlock()
	if !m.dropLocked(sub, gen) {
		return
	}
	m.logger.WithFields(logrus.Fields{"subscription": sub.ID(), "generation": gen}).
		Info("Ranging feed ended by the radio")
}

// dropLocked forgets sub if it is still the current subscription. Must hold
// subMu.
func (m *Manager) dropLocked(sub uwb.Subscription, gen uint64) bool {
	if m.sub != sub || m.generation.Load() != gen {
		return false
	}
	m.sub = nil
	m.publishMu.Lock()
	m.generation.Add(1)
	m.state.Connected.Store(false)
	m.state.Ranging.Store(false)
	m.publishMu.Unlock()
	m.stopRunner()
	m.stopRunner = nil
	return true
}

func (m *Manager) streamFailed(sub uwb.Subscription, gen uint64, cause error) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	if !m.dropLocked(sub, gen) {
		// already replaced or stopped
		return
	}

	err := uwb.Wrap(uwb.StreamError, "ranging", uwb.NormalizeError(cause))
	m.report.error("Ranging stream failed, call StartRanging to retry", err,
		logrus.Fields{"subscription": sub.ID(), "generation": gen},
		eventlog.Event{Kind: eventlog.KindStreamError, Op: "ranging", SubscriptionID: sub.ID(), Generation: gen})
}

// LocalInfo describes the local side of the session. It never fails; before
// a role is set it returns a LocalInfo with Initialized false.
func (m *Manager) LocalInfo() LocalInfo {
	scope := m.currentScope()
	if scope == nil {
		return LocalInfo{}
	}

	info := LocalInfo{
		Initialized: true,
		Role:        scope.Role,
		Address:     scope.LocalAddress,
	}
	switch {
	case scope.Controller != nil:
		info.Channel = strconv.Itoa(scope.Controller.Channel.Channel)
		info.Preamble = strconv.Itoa(scope.Controller.Channel.Preamble)
	case scope.Controlee != nil:
		info.Channel = m.state.Channel.Load()
		info.Preamble = m.state.Preamble.Load()
		caps := scope.Controlee.Capabilities
		info.Capabilities = &caps
	}
	return info
}

// Close stops ranging, shuts the role worker down and drops the scope.
// Later calls return WorkerClosed. A synchronous SetRole still waiting on
// the radio is waited for and its scope discarded. Close must not be called
// from a SetRoleAsync completion.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	m.subMu.Lock()
	m.cancelSubscriptionLocked("close", true)
	m.subMu.Unlock()

	m.worker.close()
	m.cancel()

	m.roleMu.Lock()
	m.setScope(nil)
	m.roleMu.Unlock()
	m.logger.Debug("Ranging manager closed")
}
