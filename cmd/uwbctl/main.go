package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uwbctl",
	Short: "UWB ranging session manager",
	Long: `Ultra-wideband (UWB) ranging command-line tool that provides:

- Controller / controlee role assignment with channel and preamble negotiation
- Live distance and azimuth ranging against a single peer
- Local session info (address, channel, preamble, capabilities)
- An interactive shell for role switches and ranging restarts
- A CBOR session event log and a decoder for it

Runs against the built-in simulated radio; tune it with the sim.* settings.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("uwbctl {{.Version}} (commit %s, built %s)\n", commit, date))

	rootCmd.AddCommand(rangeCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(logCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Shorthand for --log-level debug")
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, toml or json); UWBCTL_* env vars also apply")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
