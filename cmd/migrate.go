package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chadmayfield/weathercache/internal/config"
	"github.com/chadmayfield/weathercache/internal/fetcher"
	"github.com/chadmayfield/weathercache/internal/store"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	migrateCmd.Flags().StringVar(&fetchMode, "mode", "", "data source whose store to migrate, API or MOCK (overrides config)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	if fetchMode != "" {
		cfg.Mode = fetchMode
	}
	mode, err := fetcher.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	cfg.Mode = string(mode)

	if dryRun {
		logger.Info("dry run mode, showing pending migrations")
		return showPendingMigrations(cmd, cfg)
	}

	// Opening the store automatically runs migrations.
	s, err := store.Open(cfg.Storage.Driver, cfg.DSN())
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	logger.Info("migrations complete", "driver", cfg.Storage.Driver)
	return nil
}

func showPendingMigrations(cmd *cobra.Command, cfg *config.Config) error {
	var sqlDriver string
	switch cfg.Storage.Driver {
	case "sqlite":
		sqlDriver = "sqlite"
	case "postgres":
		sqlDriver = "pgx"
	default:
		return fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}

	db, err := sql.Open(sqlDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	states, err := store.Migrations(context.Background(), cfg.Storage.Driver, db)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, st := range states {
		state := "pending"
		if st.Applied {
			state = "applied"
		}
		fmt.Fprintf(out, "%05d  %-8s %s\n", st.Version, state, st.Path)
	}
	return nil
}
