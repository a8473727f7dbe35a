package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/scan-control/internal/storage"
)

var flagMigrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  doMigrate,
}

func doMigrate(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateDatabase(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := appLogger.WithGroup("migrate").Logger
	dbClient, err := initPostgreSQL(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	ctx := cmd.Context()
	if !flagMigrateStatus {
		if err := storage.Migrate(ctx, dbClient.SQLDB()); err != nil {
			return err
		}
	}

	version, err := storage.MigrationVersion(ctx, dbClient.SQLDB())
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Info("Database schema version", slog.Int64("version", version))
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}
