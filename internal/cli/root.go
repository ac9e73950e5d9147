// Package cli implements the termdiff command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/termdiff/internal/logging"
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "termdiff",
		Short: "termdiff renders terminal frames as minimal diffs",
		Long: "termdiff compares full-screen grids of styled cells and emits the " +
			"control sequences that turn one into the other.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := logging.DefaultConfig()
			cfg.Level = logging.ParseLevel(logLevel)
			cfg.Format = logging.Format(logFormat)
			cfg.Output = cmd.ErrOrStderr()
			logging.SetDefault(logging.New(cfg))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json, logfmt)")
	cmd.AddCommand(newVersionCmd(), newCapsCmd(), newRenderCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes the command tree with args, for tests.
func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}
