package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/uwbctl/internal/ranging"
	"github.com/srg/uwbctl/internal/uwb"
	"golang.org/x/term"
)

// Defaults shown on the ranging screen.
const (
	defaultPeer     = 1234
	defaultChannel  = 9
	defaultPreamble = 11
)

var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Range against a peer and print distance and azimuth",
	Long: `Assigns a role, starts ranging against one peer and prints every
distance/azimuth update until Ctrl+C or --duration.

A controller always ranges on the channel its radio assigns; --channel and
--preamble only matter for a controlee.

Examples:
  # Controller, default peer 1234
  uwbctl range --role controller

  # Controlee listening on channel 9, preamble 7, for 10 seconds
  uwbctl range --role controlee --channel 9 --preamble 7 --duration 10s

  # Keep a session event log
  uwbctl range --role controller --event-log session.cbor`,
	Args: cobra.NoArgs,
	RunE: runRange,
}

var (
	rangeRole     string
	rangePeer     uint16
	rangeChannel  int
	rangePreamble int
	rangeDuration time.Duration
	rangeEventLog string
	rangeNoColor  bool
)

func init() {
	rangeCmd.Flags().StringVar(&rangeRole, "role", "controller", "Local role: controller or controlee")
	rangeCmd.Flags().Uint16Var(&rangePeer, "peer", defaultPeer, "Peer short address")
	rangeCmd.Flags().IntVar(&rangeChannel, "channel", defaultChannel, "UWB channel (controlee only)")
	rangeCmd.Flags().IntVar(&rangePreamble, "preamble", defaultPreamble, "Preamble index (controlee only)")
	rangeCmd.Flags().DurationVar(&rangeDuration, "duration", 0, "Stop after this long; 0 runs until Ctrl+C")
	rangeCmd.Flags().StringVar(&rangeEventLog, "event-log", "", "Write a CBOR session event log to this file")
	rangeCmd.Flags().BoolVar(&rangeNoColor, "no-color", false, "Disable colored output")
}

func runRange(cmd *cobra.Command, _ []string) error {
	role, err := uwb.ParseRole(rangeRole)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, rangeEventLog)
	if err != nil {
		return err
	}
	defer s.close()

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if rangeDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rangeDuration)
		defer cancel()
	}

	if err := s.assignRole(ctx, cmd, role); err != nil {
		return err
	}

	// a controlee with a configured fallback uses it unless the flags say otherwise
	channelSet := cmd.Flags().Changed("channel") || cmd.Flags().Changed("preamble")
	if role == uwb.RoleControlee && !channelSet && s.cfg.Controlee.Configured() {
		err = s.manager.StartRangingDefault(ctx, rangePeer)
	} else {
		err = s.manager.StartRanging(ctx, rangePeer, rangeChannel, rangePreamble)
	}
	if err != nil {
		return err
	}
	defer s.manager.StopRanging()

	state := s.manager.State()
	fmt.Fprintf(cmd.ErrOrStderr(), "Ranging as %s with peer %d on channel %s, preamble %s. Press Ctrl+C to stop...\n",
		role, rangePeer, state.Channel.Load(), state.Preamble.Load())

	out := cmd.OutOrStdout()
	printer := newMeasurementPrinter(out, useColor(out))
	return watchState(ctx, state, s.cfg.WatchBuffer, printer)
}

// watchState prints every distance/azimuth/connectivity change until ctx
// ends or the subscription stops on its own.
func watchState(ctx context.Context, state *ranging.MeasurementState, buffer int, p *measurementPrinter) error {
	distance, stopDistance := state.Distance.Watch(buffer)
	defer stopDistance()
	azimuth, stopAzimuth := state.Azimuth.Watch(buffer)
	defer stopAzimuth()
	connected, stopConnected := state.Connected.Watch(buffer)
	defer stopConnected()
	active, stopActive := state.Ranging.Watch(buffer)
	defer stopActive()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		case d := <-distance:
			p.distance(d)
		case a := <-azimuth:
			p.azimuth(a)
		case c := <-connected:
			p.connected(c)
		case r := <-active:
			if !r {
				return fmt.Errorf("ranging stopped by the radio")
			}
		}
	}
}

func useColor(w io.Writer) bool {
	if rangeNoColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type measurementPrinter struct {
	out                io.Writer
	label, value, warn *color.Color
	last               struct{ distance, azimuth float32 }
	seenConnected      bool
}

func newMeasurementPrinter(out io.Writer, colored bool) *measurementPrinter {
	p := &measurementPrinter{
		out:   out,
		label: color.New(color.FgCyan),
		value: color.New(color.Bold),
		warn:  color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{p.label, p.value, p.warn} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *measurementPrinter) line() {
	fmt.Fprintf(p.out, "%s %s  %s %s\n",
		p.label.Sprint("distance"), p.value.Sprintf("%6.2f m", p.last.distance),
		p.label.Sprint("azimuth"), p.value.Sprintf("%6.1f°", p.last.azimuth))
}

func (p *measurementPrinter) distance(v float32) {
	p.last.distance = v
	p.line()
}

func (p *measurementPrinter) azimuth(v float32) {
	p.last.azimuth = v
	p.line()
}

func (p *measurementPrinter) connected(c bool) {
	// the initial false is the default, not a disconnect
	if !c && !p.seenConnected {
		return
	}
	p.seenConnected = true
	if c {
		fmt.Fprintln(p.out, p.label.Sprint("peer connected"))
	} else {
		fmt.Fprintln(p.out, p.warn.Sprint("peer disconnected"))
	}
}
