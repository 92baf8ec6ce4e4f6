package cli

import (
	"github.com/spf13/cobra"
)

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the metrics this process reports",
		Long: `Print every querypipe counter in the Prometheus text format.

Counters start at zero in each process; use --show-metrics on another
command to see the values it produced.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.Metrics.WriteText(cmd.OutOrStdout()); err != nil {
				return WrapExitError(ExitFailure, "failed to write metrics", err)
			}
			return nil
		},
	}
	return cmd
}
