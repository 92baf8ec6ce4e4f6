package cli

import (
	"encoding/json"
	"fmt"
	"iter"

	"github.com/spf13/cobra"

	"github.com/roach88/querypipe/internal/record"
	"github.com/roach88/querypipe/internal/stream"
)

// recordLine renders a record as one compact JSON object.
func recordLine(rec record.Record) string {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Sprintf("%v", rec.Map())
	}
	return string(data)
}

// emitRecords writes each record as it arrives in text mode and once as a
// list in JSON mode. limit <= 0 means no limit.
func emitRecords(f *OutputFormatter, seq iter.Seq2[record.Record, error], limit int) ([]record.Record, error) {
	out := []record.Record{}
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		f.Line("%s", recordLine(rec))
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// NewStreamCommand creates the stream command.
func NewStreamCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream users one row at a time",
		Long: `Stream every row of user_data under a single connection.

Stopping early with --limit releases the connection immediately.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			repo, err := openRepository(rootOpts, f)
			if err != nil {
				return err
			}
			recs, err := emitRecords(f, repo.StreamUsers(cmd.Context()), limit)
			if err != nil {
				return fail(f, "failed to stream users", err)
			}
			if f.JSON() {
				return f.Success(recs)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after n users (0 streams all)")
	return cmd
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		size   int
		minAge int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Read users in batches and print those above an age",
		Long: `Read user_data in fixed-size batches under a single connection and
print the users strictly older than --min-age.

The batch size defaults to batch_size from the configuration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			repo, err := openRepository(rootOpts, f)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("size") {
				size = repo.Scope().Config().BatchSize
			}
			f.VerboseLog("Batch size %d, minimum age %d", size, minAge)

			recs, err := emitRecords(f, repo.BatchOver(cmd.Context(), size, minAge), 0)
			if err != nil {
				return fail(f, "failed to process batches", err)
			}
			if f.JSON() {
				return f.Success(recs)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "rows per batch (default: batch_size from config)")
	cmd.Flags().IntVar(&minAge, "min-age", 25, "print users strictly older than this")
	return cmd
}

// NewPaginateCommand creates the paginate command.
func NewPaginateCommand(rootOpts *RootOptions) *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "paginate",
		Short: "Fetch users page by page",
		Long: `Fetch user_data one page at a time with LIMIT/OFFSET. Each page uses
its own connection; pagination stops at the first empty page.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			repo, err := openRepository(rootOpts, f)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("page-size") {
				pageSize = repo.Scope().Config().PageSize
			}

			pages := []stream.Page{}
			for page, err := range repo.LazyPaginate(cmd.Context(), pageSize) {
				if err != nil {
					return fail(f, "failed to paginate users", err)
				}
				f.Line("page %d (offset %d): %d user(s)", page.Number, page.Offset, len(page.Records))
				for _, rec := range page.Records {
					f.Line("  %s", recordLine(rec))
				}
				pages = append(pages, page)
			}
			if f.JSON() {
				return f.Success(pages)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 0, "users per page (default: page_size from config)")
	return cmd
}

// AverageResult is the payload of average-age.
type AverageResult struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// NewAverageAgeCommand creates the average-age command.
func NewAverageAgeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "average-age",
		Short:         "Compute the average user age without loading every row",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			repo, err := openRepository(rootOpts, f)
			if err != nil {
				return err
			}
			avg, n, err := repo.AverageAge(cmd.Context())
			if err != nil {
				return fail(f, "failed to compute average age", err)
			}
			if f.JSON() {
				return f.Success(AverageResult{Average: avg, Count: n})
			}
			if n == 0 {
				f.Line("No users found to calculate an average age.")
				return nil
			}
			f.Line("Average age of users: %.2f", avg)
			return nil
		},
	}
	return cmd
}
