package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/uwbctl/internal/ranging"
	"github.com/srg/uwbctl/internal/testutils"
	"github.com/srg/uwbctl/internal/uwb"
	"github.com/srg/uwbctl/internal/uwb/sim"
	"github.com/srg/uwbctl/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// executeRoot runs the root command with a fast simulated radio.
func executeRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("UWBCTL_SIM_ACQUIRE_DELAY", "0s")
	t.Setenv("UWBCTL_SIM_INTERVAL", "10ms")
	t.Setenv("UWBCTL_LOG_LEVEL", "error")

	out := &lockedBuffer{}
	errOut := &lockedBuffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{"not ready", &uwb.Error{Kind: uwb.NotReady}, "no ranging session; set a role first"},
		{
			"platform off",
			&uwb.Error{Kind: uwb.ScopeAcquisitionFailed, Err: uwb.NormalizeError(errors.New("UWB disabled"))},
			"UWB is unavailable on this device",
		},
		{"acquire", &uwb.Error{Kind: uwb.ScopeAcquisitionFailed, Err: errors.New("busy")}, "could not acquire a ranging session"},
		{"controlee channel", &uwb.Error{Kind: uwb.ChannelUnspecified}, "controlee needs --channel and --preamble"},
		{"timeout", context.DeadlineExceeded, "timed out"},
		{"mismatch", &uwb.Error{Kind: uwb.RoleScopeMismatch}, "wrong role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatUserError(tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "x"}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		return cmd
	}
	cfg := config.DefaultConfig()
	cfg.LogLevel = "warn"

	logger, err := configureLogger(newCmd(), cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel(), "config level applies without flags")

	cmd := newCmd()
	require.NoError(t, cmd.Flags().Set("verbose", "true"))
	logger, err = configureLogger(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	cmd = newCmd()
	require.NoError(t, cmd.Flags().Set("verbose", "true"))
	require.NoError(t, cmd.Flags().Set("log-level", "error"))
	logger, err = configureLogger(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.ErrorLevel, logger.GetLevel(), "--log-level MUST win over --verbose")

	cmd = newCmd()
	require.NoError(t, cmd.Flags().Set("log-level", "loud"))
	_, err = configureLogger(cmd, cfg)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestProgressPrinter(t *testing.T) {
	out := &lockedBuffer{}
	p := NewProgressPrinter(out, "Acquiring", "Waiting", phaseReady)
	p.Start()
	assert.Panics(t, p.Start)

	p.Callback()("Still waiting")
	assert.Equal(t, "Still waiting", p.Phase())

	p.Callback()(phaseReady)
	p.Stop()

	assert.Contains(t, out.String(), "Acquiring (Waiting...)")
	assert.True(t, strings.HasSuffix(out.String(), clearLineSequence))
}

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	h := testutils.NewTestHelper(t)
	t.Cleanup(h.DumpLogsOnFailure)

	radio := sim.New(sim.DefaultOptions(), h.Logger)
	m := ranging.NewManager(radio, &ranging.Options{Logger: h.Logger})
	t.Cleanup(m.Close)

	out := &bytes.Buffer{}
	return newShell(m, out), out
}

func TestShell_Session(t *testing.T) {
	sh, out := newTestShell(t)
	ctx := context.Background()

	run := func(line string) string {
		out.Reset()
		assert.False(t, sh.exec(ctx, line))
		return out.String()
	}

	assert.Contains(t, run("start"), "no ranging session")
	assert.Equal(t, ranging.NotInitialized+"\n", run("info"))
	assert.Contains(t, run("role controller"), "Role set: Controller (address 4660)")
	assert.Contains(t, run("role ctrl"), "Already Controller")
	assert.Contains(t, run("start 1234 5 3"), "channel 9, preamble 11")
	assert.Contains(t, run("state"), "ranging=true")
	assert.Contains(t, run("state yaml"), "ranging: true")
	assert.Equal(t, "OK\n", run("stop"))
	assert.Contains(t, run("state"), "ranging=false")

	testutils.NewTextAsserter(t).Assert(run("info"), `
Controller
Address: 4660
Channel: 9
Preamble: 11
`)

	assert.Contains(t, run("role controlee"), "Role set: Controlee")
	assert.Contains(t, run("start 1234 9 7"), "channel 9, preamble 7")
	assert.Contains(t, run("role bogus"), "invalid role")
	assert.Contains(t, run("start x"), "Invalid number: x")
	assert.Contains(t, run("start 70000"), "out of range")
	assert.Contains(t, run("frobnicate"), "Unknown command: frobnicate")
	assert.Contains(t, run("help"), "start [peer] [channel] [preamble]")
	assert.Empty(t, run("   "))

	out.Reset()
	assert.True(t, sh.exec(ctx, "exit"))
}

func TestWriteInfo(t *testing.T) {
	caps := uwb.Capabilities{Distance: true, Azimuth: false, Elevation: false}
	info := ranging.LocalInfo{
		Initialized:  true,
		Role:         uwb.RoleControlee,
		Address:      uwb.AddressFromShort(0x1234),
		Channel:      "9",
		Preamble:     "7",
		Capabilities: &caps,
	}

	var buf bytes.Buffer
	require.NoError(t, writeInfo(&buf, info, "yaml"))
	out := buf.String()

	order := []string{"role:", "address:", "channel:", "preamble:", "supports_distance:", "supports_azimuth:", "supports_elevation:"}
	last := -1
	for _, key := range order {
		idx := strings.Index(out, key)
		require.GreaterOrEqual(t, idx, 0, "missing %s in:\n%s", key, out)
		assert.Greater(t, idx, last, "%s MUST keep LocalInfo order", key)
		last = idx
	}

	buf.Reset()
	require.NoError(t, writeInfo(&buf, ranging.LocalInfo{}, "yaml"))
	assert.Contains(t, buf.String(), "status: not initialized")

	buf.Reset()
	require.NoError(t, writeInfo(&buf, ranging.LocalInfo{}, "text"))
	assert.Equal(t, "not initialized\n", buf.String())
}

func TestInfoCommand(t *testing.T) {
	out, _, err := executeRoot(t, "info", "--role", "controlee", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "role: Controlee")
	assert.Contains(t, out, "4660")
	assert.Contains(t, out, "supports_azimuth: ")

	_, _, err = executeRoot(t, "info", "--role", "nobody")
	assert.ErrorIs(t, err, uwb.ErrInvalidRole)

	_, _, err = executeRoot(t, "info", "--role", "controller", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestRangeCommand_WritesEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")

	out, _, err := executeRoot(t, "range", "--role", "controller", "--duration", "300ms", "--event-log", path)
	require.NoError(t, err)
	assert.Contains(t, out, "distance")
	assert.Contains(t, out, "azimuth")

	logOut, _, err := executeRoot(t, "log", path)
	require.NoError(t, err)
	assert.Contains(t, logOut, "kind: ROLE_SET")
	assert.Contains(t, logOut, "kind: RANGING_STARTED")
	assert.Contains(t, logOut, "kind: RANGING_STOPPED")

	t.Cleanup(func() { logKind = "" })
	filtered, _, err := executeRoot(t, "log", path, "--kind", "ROLE_SET")
	require.NoError(t, err)
	assert.Contains(t, filtered, "kind: ROLE_SET")
	assert.NotContains(t, filtered, "RANGING_STARTED")
}

func TestLogCommand_MissingFile(t *testing.T) {
	_, _, err := executeRoot(t, "log", filepath.Join(t.TempDir(), "missing.cbor"))
	assert.ErrorContains(t, err, "failed to open event log")
}

func TestWatchState_StopsWhenRangingEnds(t *testing.T) {
	state := ranging.NewMeasurementState()
	state.Ranging.Store(true)

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- watchState(context.Background(), state, 1, newMeasurementPrinter(&buf, false))
	}()

	time.Sleep(20 * time.Millisecond)
	state.Ranging.Store(false)

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "ranging stopped")
	case <-time.After(time.Second):
		t.Fatal("watchState MUST return when ranging ends")
	}
}
