package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows "prefix (phase Ns)" on a single terminal line while
// a blocking step such as scope acquisition runs.
//
//	p := NewProgressPrinter(os.Stderr, "Acquiring controller session", "Waiting for radio", phaseReady)
//	p.Start()
//	defer p.Stop()
//
// Setting a stop phase through Callback stops the printer. A printer is
// single-use; Stop is safe to call any number of times.
type ProgressPrinter struct {
	out        io.Writer
	prefix     string
	phase      atomic.Value // string
	stopPhases map[string]struct{}
	startTime  time.Time

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewProgressPrinter creates a printer writing to out.
func NewProgressPrinter(out io.Writer, prefix, phase string, stopPhases ...string) *ProgressPrinter {
	stopSet := make(map[string]struct{}, len(stopPhases))
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &ProgressPrinter{
		out:        out,
		prefix:     prefix,
		stopPhases: stopSet,
	}
	p.phase.Store(phase)
	return p
}

// Start begins displaying progress. It panics if called twice.
func (p *ProgressPrinter) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		panic("ProgressPrinter.Start called more than once")
	}
	p.started = true
	p.startTime = time.Now()
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})

	fmt.Fprintf(p.out, "\r%s (%s...)   ", p.prefix, p.Phase())
	go p.loop(p.stopChan, p.done)
}

func (p *ProgressPrinter) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(progressUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			seconds := int(time.Since(p.startTime).Seconds())
			if seconds > 0 {
				fmt.Fprintf(p.out, "\r%s (%s %ds)   ", p.prefix, p.Phase(), seconds)
			} else {
				fmt.Fprintf(p.out, "\r%s (%s...)   ", p.prefix, p.Phase())
			}
		}
	}
}

// Phase returns the current phase.
func (p *ProgressPrinter) Phase() string {
	return p.phase.Load().(string)
}

// Callback returns a function that updates the phase. It is safe to call
// from any goroutine, including a SetRoleAsync completion.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, stop := p.stopPhases[phase]; stop {
			p.Stop()
		}
	}
}

// Stop stops the display and clears the line.
func (p *ProgressPrinter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopChan == nil {
		return
	}
	close(p.stopChan)
	<-p.done
	p.stopChan = nil

	fmt.Fprint(p.out, clearLineSequence)
}
