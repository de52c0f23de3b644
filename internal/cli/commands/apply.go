package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/connectome/emschema/internal/cli/ui"
	"github.com/connectome/emschema/internal/orm/migrate"
)

// openDB opens the dataset database. Tests replace it.
var openDB = func(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func databaseURL(e *env, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if url := e.cfg.GetDatabaseURL(); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("DATABASE_URL not set: use --url, DATABASE_URL or database.url in the manifest")
}

func newApplyCommand(opts *globalOptions) *cobra.Command {
	var urlFlag string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create the dataset tables in the database",
		Long: `Create every table of the dataset manifest that has not been created yet.
All tables are created in one transaction; on failure nothing is committed.`,
		Example: `  # Create tables using DATABASE_URL
  emschema apply

  # Override the database
  emschema apply --url postgresql://postgres@localhost:5432/annotations`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			url, err := databaseURL(e, urlFlag)
			if err != nil {
				ui.ConfigError(err, opts.noColor).Write(e.errOut)
				return errReported
			}

			ms, err := e.compile()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			db, err := openDB(ctx, url)
			if err != nil {
				ui.ApplyError(err, opts.noColor).Write(e.errOut)
				return errReported
			}
			defer db.Close()

			result, err := migrate.NewApplier(db, migrate.WithLogger(e.logger)).Apply(ctx, ms)
			if err != nil {
				ui.ApplyError(err, opts.noColor).Write(e.errOut)
				return errReported
			}

			if len(result.Skipped) > 0 {
				fmt.Fprint(e.out, ui.Info("already created: "+strings.Join(result.Skipped, ", "), opts.noColor))
			}
			ui.WriteSuccess(e.out, fmt.Sprintf("created %d tables", len(result.Applied)), opts.noColor)
			for _, t := range result.Applied {
				fmt.Fprintf(e.out, "  %s\n", t)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&urlFlag, "url", "", "override DATABASE_URL")
	return cmd
}

func newDropCommand(opts *globalOptions) *cobra.Command {
	var (
		urlFlag string
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the dataset tables created by apply",
		Example: `  emschema drop --yes`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("drop deletes annotation data: pass --yes to confirm")
			}

			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			url, err := databaseURL(e, urlFlag)
			if err != nil {
				ui.ConfigError(err, opts.noColor).Write(e.errOut)
				return errReported
			}

			ms, err := e.compile()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			db, err := openDB(ctx, url)
			if err != nil {
				ui.ApplyError(err, opts.noColor).Write(e.errOut)
				return errReported
			}
			defer db.Close()

			result, err := migrate.NewApplier(db, migrate.WithLogger(e.logger)).Drop(ctx, ms)
			if err != nil {
				ui.ApplyError(err, opts.noColor).Write(e.errOut)
				return errReported
			}
			ui.WriteSuccess(e.out, fmt.Sprintf("dropped %d tables", len(result.Dropped)), opts.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&urlFlag, "url", "", "override DATABASE_URL")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm dropping tables")
	return cmd
}
