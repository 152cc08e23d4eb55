package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/srg/uwbctl/internal/eventlog"
	"gopkg.in/yaml.v3"
)

var logCmd = &cobra.Command{
	Use:   "log <file>",
	Short: "Print a CBOR session event log as YAML",
	Long: `Decodes a session event log written with --event-log (or the event_log
setting) and prints one YAML document per event.

Examples:
  uwbctl log session.cbor
  uwbctl log session.cbor --kind STREAM_ERROR`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

var logKind string

func init() {
	logCmd.Flags().StringVar(&logKind, "kind", "", "Only print events of this kind (e.g. ROLE_SET, STREAM_ERROR)")
}

func runLog(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	cmd.SilenceUsage = true

	events, err := eventlog.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to decode event log: %w", err)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	for _, ev := range events {
		if logKind != "" && ev.Kind.String() != logKind {
			continue
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return enc.Close()
}
