package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/script"
)

type globalOptions struct {
	Driver   string
	DSN      string
	LogLevel string
}

func (o *globalOptions) database() database.Config {
	cfg := database.Config{Driver: o.Driver, DSN: o.DSN}
	if o.Driver == database.DriverSQLite {
		// sqlite takes a file path, not a DSN
		cfg.Name, cfg.DSN = o.DSN, ""
	}
	return cfg
}

func (o *globalOptions) logger() (ectologger.Logger, error) {
	logger, _, err := logging.New(logging.Options{AppName: "fernctl", Level: o.LogLevel, Pretty: true})
	return logger, err
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "fernctl",
		Short:         "Run fern edit scripts and migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.Driver, "driver", database.DriverSQLite, "database driver: postgres, pgx, mysql or sqlite")
	flags.StringVar(&opts.DSN, "dsn", "", "connection string, or the database file for sqlite")
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "log level")

	root.AddCommand(newRunCommand(opts, stdout))
	root.AddCommand(newMigrateCommand(opts))
	return root
}

func newRunCommand(opts *globalOptions, stdout io.Writer) *cobra.Command {
	var (
		dryRun        bool
		verbose       bool
		parallel      int
		transactional bool
	)
	cmd := &cobra.Command{
		Use:   "run <files...>",
		Short: "Run edit scripts",
		Long: `
Runs YAML edit scripts. Every script gets its own command context; with
--dry-run the generated statements are printed instead of executed.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger, err := opts.logger()
			if err != nil {
				return err
			}

			cfg := script.Config{
				Files:    args,
				DryRun:   dryRun,
				Verbose:  verbose,
				Parallel: parallel,
				Flavor:   database.FlavorFor(opts.Driver),
				Out:      stdout,
				Logger:   logger,
			}
			if !dryRun {
				db, err := database.Open(ctx, opts.database(), logger)
				if err != nil {
					return err
				}
				defer db.Close()
				cfg.Flavor = db.Flavor()
				cfg.Provider = database.NewPersistenceProvider(db, logger, database.WithTransactions(transactional))
			}

			result := script.Run(ctx, cfg)
			fmt.Fprintf(stdout, "\n%d scripts, %d passed, %d failed\n", result.Total, result.Passed, result.Failed)
			if result.Failed > 0 {
				return errors.Errorf("%d of %d scripts failed", result.Failed, result.Total)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "print statements instead of executing them")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print every step")
	flags.IntVar(&parallel, "parallel", 0, "number of scripts to run concurrently")
	flags.BoolVar(&transactional, "transactional", false, "run the actions of one command in a transaction")
	return cmd
}

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	migration := &database.MigrationConfig{AutoRollback: true}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the journal schema migrations",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			db, err := database.Open(ctx, opts.database(), logger)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.NewMigrationService(logger, migration).Migrate(db)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&migration.FolderPath, "path", "db/migrations", "migrations folder, one sub folder per dialect")
	flags.UintVar(&migration.Version, "version", 0, "target version, 0 migrates up")
	flags.IntVar(&migration.Force, "force", 0, "force the schema version before migrating")
	return cmd
}
