package testutils

import (
	"bytes"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestHelper bundles what most ranging tests need: a debug logger whose
// output is captured instead of printed.
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger

	logs *syncBuffer
}

// NewTestHelper creates a test helper with a captured debug logger.
//
// Output goes to an in-memory buffer rather than t.Log because manager
// goroutines may still log after the test has returned.
func NewTestHelper(t *testing.T) *TestHelper {
	buf := &syncBuffer{}
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	return &TestHelper{
		T:      t,
		Logger: logger,
		logs:   buf,
	}
}

// Logs returns everything logged so far.
func (h *TestHelper) Logs() string {
	return h.logs.String()
}

// DumpLogsOnFailure prints the captured logs if the test failed. Use with
// t.Cleanup.
func (h *TestHelper) DumpLogsOnFailure() {
	if h.T.Failed() {
		h.T.Logf("captured logs:\n%s", h.Logs())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
