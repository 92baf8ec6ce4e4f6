package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// SeedResult is the payload of seed.
type SeedResult struct {
	Inserted int `json:"inserted"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <csv>",
		Short: "Create user_data and load users from a CSV file",
		Long: `Create the user_data table if needed and insert every row of a
name,email,age CSV file in one transaction. Each user gets a random id.

Example:
  querypipe seed ./user_data.csv
  querypipe --driver mysql seed ./user_data.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			file, err := os.Open(args[0])
			if err != nil {
				_ = f.Error(ErrCodeInput, "failed to open CSV", err.Error())
				return WrapExitError(ExitCommandError, "failed to open CSV", err)
			}
			defer file.Close()

			repo, err := openRepository(rootOpts, f)
			if err != nil {
				return err
			}
			n, err := repo.SeedCSV(cmd.Context(), file)
			if err != nil {
				return fail(f, "failed to seed users", err)
			}
			if f.JSON() {
				return f.Success(SeedResult{Inserted: n})
			}
			f.Line("Inserted %d users", n)
			return nil
		},
	}
	return cmd
}

// UpdateResult is the payload of update-email.
type UpdateResult struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	RowsAffected int64  `json:"rows_affected"`
}

// NewUpdateEmailCommand creates the update-email command.
func NewUpdateEmailCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-email <user-id> <email>",
		Short: "Change a user's email in a retried transaction",
		Long: `Update one user's email. The statement runs in a transaction that is
committed on success and rolled back on failure, retried up to
max_attempts times with a fixed delay between attempts.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			repo, err := openRepository(rootOpts, f)
			if err != nil {
				return err
			}
			res, err := repo.UpdateEmail(cmd.Context(), args[0], args[1])
			if err != nil {
				return fail(f, "failed to update email", err)
			}
			if f.JSON() {
				return f.Success(UpdateResult{UserID: args[0], Email: args[1], RowsAffected: res.RowsAffected})
			}
			f.Line("Updated %d row(s)", res.RowsAffected)
			return nil
		},
	}
	return cmd
}
