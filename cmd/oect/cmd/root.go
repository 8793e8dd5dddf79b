package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "oect",
	Short: "OECT transfer and output curve characterization",
	Long: `Characterize organic electrochemical transistors from the curve files
of a device folder: transconductance of every transfer sweep, operating
quadrant, and threshold voltage per curve.

Examples:
  oect analyze data/chip4_dev2                      # Summary table
  oect analyze --json --gm-method raw data/chip4    # Full results as JSON
  oect analyze --plot vt.png --no-reverse data/chip4
  oect init-config data/chip4_dev2                  # Write config.cfg`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configureLogging sends human-readable logs to stderr, keeping stdout for
// results.
func configureLogging(cmd *cobra.Command) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
}
