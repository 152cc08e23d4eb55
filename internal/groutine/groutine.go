package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const nameKey ctxKey = "goroutine_name"

// Go starts fn on a new goroutine labelled with name, so it shows up under
// that name in pprof goroutine dumps. If parent is nil, context.Background()
// is used. The returned channel is closed when fn returns.
//
//	done := groutine.Go(ctx, "role-worker", func(ctx context.Context) {
//	    // work
//	})
//	<-done
func Go(parent context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parent == nil {
		parent = context.Background()
	}

	done := make(chan struct{})
	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parent, labels, func(ctx context.Context) {
		defer close(done)
		fn(context.WithValue(ctx, nameKey, name))
	})

	return done
}

// Name returns the goroutine name carried by ctx, or "" if there is none.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(nameKey).(string); ok {
		return s
	}
	return ""
}
