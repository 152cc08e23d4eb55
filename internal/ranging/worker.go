package ranging

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/uwbctl/internal/groutine"
	"github.com/srg/uwbctl/internal/uwb"
)

type roleRequest struct {
	role uwb.Role
	done func(error)
}

// roleWorker runs role assignments one at a time on a single goroutine.
// Requests beyond the queue size are rejected rather than queued without
// bound.
type roleWorker struct {
	run    func(ctx context.Context, role uwb.Role) error
	logger *logrus.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan roleRequest
	cancel context.CancelFunc
	exited <-chan struct{}
}

func newRoleWorker(parent context.Context, size int, run func(context.Context, uwb.Role) error, logger *logrus.Logger) *roleWorker {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(parent)
	w := &roleWorker{
		run:    run,
		logger: logger,
		queue:  make(chan roleRequest, size),
		cancel: cancel,
	}
	w.exited = groutine.Go(ctx, "uwb-role-worker", w.loop)
	return w
}

// submit enqueues a role assignment. done is called exactly once: with the
// result of the assignment, or with WorkerBusy / WorkerClosed if the
// request was never run.
func (w *roleWorker) submit(role uwb.Role, done func(error)) {
	if done == nil {
		done = func(error) {}
	}

	w.mu.RLock()
	var err error
	if w.closed {
		err = &uwb.Error{Kind: uwb.WorkerClosed, Op: "set_role_async"}
	} else {
		select {
		case w.queue <- roleRequest{role: role, done: done}:
		default:
			err = &uwb.Error{Kind: uwb.WorkerBusy, Op: "set_role_async", Msg: "role queue is full"}
		}
	}
	w.mu.RUnlock()

	if err != nil {
		done(err)
	}
}

func (w *roleWorker) loop(ctx context.Context) {
	w.logger.Debug("Role worker started")
	defer w.logger.Debug("Role worker stopped")

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case req := <-w.queue:
			if ctx.Err() != nil {
				req.done(&uwb.Error{Kind: uwb.WorkerClosed, Op: "set_role_async"})
				continue
			}
			req.done(w.run(ctx, req.role))
		}
	}
}

func (w *roleWorker) drain() {
	for {
		select {
		case req := <-w.queue:
			req.done(&uwb.Error{Kind: uwb.WorkerClosed, Op: "set_role_async"})
		default:
			return
		}
	}
}

// close stops accepting requests, cancels the one in progress and waits for
// the worker to exit. It must not be called from a completion callback.
func (w *roleWorker) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	<-w.exited
}
