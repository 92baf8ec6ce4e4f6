package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/querypipe/internal/record"
)

// QueryResult is the payload of query.
type QueryResult struct {
	Runs    int             `json:"runs"`
	Cached  int             `json:"cached"`
	Records []record.Record `json:"records"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var repeat int

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query through the result cache",
		Long: `Run a query through a connection scope and the result cache.

With --repeat the query runs several times in this process; every run
after the first is served from the cache.

Example:
  querypipe query "SELECT * FROM user_data" --repeat 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			if repeat < 1 {
				err := fmt.Errorf("--repeat must be >= 1, got %d", repeat)
				_ = f.Error(ErrCodeConfiguration, "invalid flags", err.Error())
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}

			repo, err := openRepository(rootOpts, f)
			if err != nil {
				return err
			}

			q := record.Q(args[0])
			var recs []record.Record
			for i := range repeat {
				recs, err = repo.CachedQuery(cmd.Context(), q)
				if err != nil {
					return fail(f, "query failed", err)
				}
				f.VerboseLog("Run %d returned %d record(s)", i+1, len(recs))
			}

			if f.JSON() {
				return f.Success(QueryResult{Runs: repeat, Cached: repo.Cache().Map().Len(), Records: recs})
			}
			for _, rec := range recs {
				f.Line("%s", recordLine(rec))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&repeat, "repeat", 1, "run the query this many times")
	return cmd
}

// FetchResult is the payload of fetch-concurrent.
type FetchResult struct {
	OlderThan int             `json:"older_than"`
	All       []record.Record `json:"all"`
	Older     []record.Record `json:"older"`
}

// NewFetchConcurrentCommand creates the fetch-concurrent command.
func NewFetchConcurrentCommand(rootOpts *RootOptions) *cobra.Command {
	var olderThan int

	cmd := &cobra.Command{
		Use:   "fetch-concurrent",
		Short: "Fetch all users and older users at the same time",
		Long: `Run two independent queries concurrently, each with its own
connection: every user, and the users strictly older than --older-than.
Both results are printed once both queries have finished.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			repo, err := openRepository(rootOpts, f)
			if err != nil {
				return err
			}
			all, older, err := repo.FetchAllAndOlder(cmd.Context(), olderThan)
			if err != nil {
				return fail(f, "concurrent fetch failed", err)
			}
			if f.JSON() {
				return f.Success(FetchResult{OlderThan: olderThan, All: all, Older: older})
			}
			f.Line("All users (%d):", len(all))
			for _, rec := range all {
				f.Line("  %s", recordLine(rec))
			}
			f.Line("Users older than %d (%d):", olderThan, len(older))
			for _, rec := range older {
				f.Line("  %s", recordLine(rec))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThan, "older-than", 40, "age threshold for the second query")
	return cmd
}
