package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/querypipe/internal/config"
	"github.com/roach88/querypipe/internal/store"
	"github.com/roach88/querypipe/internal/users"
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig layers defaults, the config file, the environment and the
// persistent flags, then validates the result.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	config.Merge(&cfg, config.Config{Driver: opts.Driver, Database: opts.Database})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (opts *RootOptions) logger() *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.Default()
}

// openRepository builds the scope and users repository a command runs
// against. Errors are reported through f.
func openRepository(opts *RootOptions, f *OutputFormatter) (*users.Repository, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fail(f, "failed to load configuration", err)
	}
	f.VerboseLog("Using %s database %s", cfg.Driver, cfg.Database)

	scope, err := store.NewScope(cfg,
		store.WithLogger(opts.logger()),
		store.WithMetrics(opts.Metrics),
	)
	if err != nil {
		return nil, fail(f, "failed to create connection scope", err)
	}

	var repoOpts []users.Option
	if opts.LogQueries {
		repoOpts = append(repoOpts, users.WithQueryLogging())
	}
	repo, err := users.New(scope, repoOpts...)
	if err != nil {
		return nil, fail(f, "failed to create repository", err)
	}
	return repo, nil
}
