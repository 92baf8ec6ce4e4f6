// Package cli implements the querypipe command line.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/querypipe/internal/logging"
	"github.com/roach88/querypipe/internal/metrics"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	Driver      string
	Database    string
	LogQueries  bool
	ShowMetrics bool

	// Metrics collects every counter reported while a command runs.
	Metrics *metrics.Registry
	// Logger is built in PersistentPreRunE from the verbose flag.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the querypipe CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Metrics: metrics.New()}

	cmd := &cobra.Command{
		Use:   "querypipe",
		Short: "querypipe - scoped, retried, cached database queries",
		Long: `Run queries against a relational database through composable wrappers:
connection scopes, transactions, retry, result caching, and lazy
stream, batch and page producers.

The connection secret is read from the environment variable named by
secret_env (MYSQL_PASSWORD unless configured otherwise).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintf(cmd.ErrOrStderr(), "Error [%s]: %s\n", ErrCodeConfiguration, msg)
				return NewExitError(ExitCommandError, msg)
			}
			opts.Logger = logging.Setup(cmd.ErrOrStderr(), logging.Options{Verbose: opts.Verbose})
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.ShowMetrics {
				return nil
			}
			return opts.Metrics.WriteText(cmd.ErrOrStderr())
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|sqlite|mysql|pgx), overrides config")
	flags.StringVar(&opts.Database, "database", "", "database name or SQLite file, overrides config")
	flags.BoolVar(&opts.LogQueries, "log-queries", false, "log every query before it runs")
	flags.BoolVar(&opts.ShowMetrics, "show-metrics", false, "print collected metrics to stderr on exit")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewStreamCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewPaginateCommand(opts))
	cmd.AddCommand(NewAverageAgeCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewUpdateEmailCommand(opts))
	cmd.AddCommand(NewFetchConcurrentCommand(opts))
	cmd.AddCommand(NewMetricsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
