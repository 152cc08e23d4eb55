package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/uwbctl/internal/eventlog"
	"github.com/srg/uwbctl/internal/ranging"
	"github.com/srg/uwbctl/internal/uwb"
	"github.com/srg/uwbctl/internal/uwb/sim"
	"github.com/srg/uwbctl/pkg/config"
)

// session is what every ranging command runs on: configuration, logger, the
// simulated radio and one manager.
type session struct {
	cfg     *config.Config
	logger  *logrus.Logger
	radio   *sim.Radio
	manager *ranging.Manager

	recorder *eventlog.FileRecorder
	cancel   context.CancelFunc
}

// newRadio is a variable so tests can substitute the radio.
var newRadio = func(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *sim.Radio {
	opts := sim.DefaultOptions()
	opts.LocalAddress = uwb.AddressFromShort(cfg.Sim.LocalAddress)
	opts.Channel = uwb.ComplexChannel{Channel: cfg.Sim.Channel, Preamble: cfg.Sim.Preamble}
	opts.AcquireDelay = cfg.Sim.AcquireDelay
	opts.Buffer = cfg.Sim.Buffer
	opts.OnOpen = func(f *sim.Feed) {
		sim.DefaultGenerator(cfg.Sim.Interval).Drive(ctx, f)
	}
	return sim.New(opts, logger)
}

// openSession loads configuration and wires a manager. eventLog overrides
// the configured event log path when set. Call close when done.
func openSession(cmd *cobra.Command, eventLog string) (*session, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if eventLog != "" {
		cfg.EventLog = eventLog
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}

	var recorder eventlog.Recorder = eventlog.NoopRecorder{}
	if cfg.EventLog != "" {
		s.recorder, err = eventlog.NewFileRecorder(cfg.EventLog)
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		recorder = s.recorder
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.radio = newRadio(ctx, cfg, logger)
	s.manager = ranging.NewManager(s.radio, &ranging.Options{
		Config:   cfg,
		Logger:   logger,
		Recorder: recorder,
	})
	return s, nil
}

func (s *session) close() {
	s.manager.Close()
	s.cancel()
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close event log")
		}
	}
}

const phaseReady = "Ready"

// assignRole sets role through the manager's role worker while a progress
// line is shown on the command's stderr.
func (s *session) assignRole(ctx context.Context, cmd *cobra.Command, role uwb.Role) error {
	progress := NewProgressPrinter(cmd.ErrOrStderr(),
		fmt.Sprintf("Acquiring %s session", role), "Waiting for radio", phaseReady)
	progress.Start()
	defer progress.Stop()

	done := make(chan error, 1)
	s.manager.SetRoleAsync(role, func(err error) {
		progress.Callback()(phaseReady)
		done <- err
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
