// Package app contains the Cobra command tree for projmetrics.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projmetrics/internal/config"
	"github.com/blackwell-systems/projmetrics/internal/logging"
	"github.com/blackwell-systems/projmetrics/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor  bool
	flagJSON     bool
	flagJSONLogs bool
	flagVerbose  bool
	flagConfig   string
)

// log is configured in PersistentPreRun; commands log through it.
var log = logging.Nop()

var rootCmd = &cobra.Command{
	Use:   "projmetrics",
	Short: "Measure software quality metrics across many projects",
	Long: `projmetrics discovers projects under a base directory, measures a set of
language specific quality metrics for each of them in parallel batches, and
writes one row per project to a CSV file as it goes.

Run 'projmetrics metrics' to see what can be measured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(logging.Options{Verbose: flagVerbose, JSON: flagJSONLogs})
		output.ConfigureColor(flagNoColor, os.Stdout)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for configuration errors and 1 for everything else.
func exitCode(err error) int {
	if errors.Is(err, config.ErrInvalid) {
		return 2
	}
	return 1
}

// loadConfig loads the config file and applies its colour preference.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}
	if !cfg.Output.Color {
		output.SetNoColor(true)
	}
	return cfg, nil
}

// printError writes err and any hints attached to it.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "error:", err)
	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintln(w, "hint:", hint)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/projmetrics/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")
}
