package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/srg/uwbctl/internal/ranging"
	"github.com/srg/uwbctl/internal/uwb"
	"gopkg.in/yaml.v3"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive ranging shell",
	Long: `Starts an interactive shell on one ranging session. Switch roles, start
and stop ranging and inspect the published state without restarting.

Type 'help' inside the shell for the command list.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.close()

	cmd.SilenceUsage = true

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "uwb> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// keep log lines from tearing the prompt
	s.logger.SetOutput(rl.Stderr())

	sh := newShell(s.manager, rl.Stdout())
	sh.printHelp()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil
		}
		if sh.exec(context.Background(), line) {
			return nil
		}
	}
}

// shell interprets REPL commands against a manager.
type shell struct {
	manager *ranging.Manager
	out     io.Writer

	peer     uint16
	channel  int
	preamble int
}

func newShell(m *ranging.Manager, out io.Writer) *shell {
	return &shell{
		manager:  m,
		out:      out,
		peer:     defaultPeer,
		channel:  defaultChannel,
		preamble: defaultPreamble,
	}
}

// exec runs one input line. It returns true when the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "role", "r":
		sh.cmdRole(ctx, args)
	case "start", "s":
		sh.cmdStart(ctx, args)
	case "stop":
		sh.manager.StopRanging()
		fmt.Fprintln(sh.out, "OK")
	case "info", "i":
		fmt.Fprintln(sh.out, sh.manager.LocalInfo())
	case "state", "st":
		sh.cmdState(args)
	case "quit", "exit", "q":
		fmt.Fprintln(sh.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(sh.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (sh *shell) printHelp() {
	fmt.Fprintf(sh.out, `Commands:
  role <controller|controlee>              Switch role (skipped if already in effect)
  start [peer] [channel] [preamble]        Start ranging (defaults: %d %d %d)
  stop                                     Stop ranging
  info                                     Show local session info
  state [yaml]                             Show published measurement state
  help                                     Show this help
  exit                                     Leave the shell
`, sh.peer, sh.channel, sh.preamble)
}

func (sh *shell) cmdRole(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(sh.out, "Usage: role <controller|controlee>")
		return
	}
	role, err := uwb.ParseRole(args[0])
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %s\n", FormatUserError(err))
		return
	}

	// ranging on the old role never outlives a role switch
	sh.manager.StopRanging()
	switched, err := sh.manager.SwitchRole(ctx, role)
	switch {
	case err != nil:
		fmt.Fprintf(sh.out, "Error: %s\n", FormatUserError(err))
	case !switched:
		fmt.Fprintf(sh.out, "Already %s\n", role)
	default:
		fmt.Fprintf(sh.out, "Role set: %s (address %s)\n", role, sh.manager.State().Address.Load())
	}
}

func (sh *shell) cmdStart(ctx context.Context, args []string) {
	if len(args) > 3 {
		fmt.Fprintln(sh.out, "Usage: start [peer] [channel] [preamble]")
		return
	}

	vals := []int{int(sh.peer), sh.channel, sh.preamble}
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			fmt.Fprintf(sh.out, "Invalid number: %s\n", a)
			return
		}
		vals[i] = v
	}
	if vals[0] < 0 || vals[0] > 0xffff {
		fmt.Fprintf(sh.out, "Peer address out of range: %d\n", vals[0])
		return
	}
	sh.peer, sh.channel, sh.preamble = uint16(vals[0]), vals[1], vals[2]

	if err := sh.manager.StartRanging(ctx, sh.peer, sh.channel, sh.preamble); err != nil {
		fmt.Fprintf(sh.out, "Error: %s\n", FormatUserError(err))
		return
	}
	st := sh.manager.State()
	fmt.Fprintf(sh.out, "Ranging with peer %d on channel %s, preamble %s\n",
		sh.peer, st.Channel.Load(), st.Preamble.Load())
}

func (sh *shell) cmdState(args []string) {
	snap := sh.manager.State().Snapshot()
	if len(args) == 1 && args[0] == "yaml" {
		out, err := yaml.Marshal(snap)
		if err != nil {
			fmt.Fprintf(sh.out, "Error: %v\n", err)
			return
		}
		fmt.Fprint(sh.out, string(out))
		return
	}
	fmt.Fprintln(sh.out, snap)
}
