package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bilancio/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the applied schema version",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func sqlDialect() (storage.Dialect, string, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return "", "", err
	}
	if cfg.DataBackend == "memory" {
		return "", "", fmt.Errorf("the memory backend has no schema to migrate")
	}
	dialect, err := storage.ParseDialect(cfg.DataBackend)
	if err != nil {
		return "", "", err
	}
	logger.Debug("Resolved migration target", "dialect", dialect)
	return dialect, cfg.DSN(), nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	dialect, dsn, err := sqlDialect()
	if err != nil {
		return err
	}
	if err := storage.RunMigrations(dialect, dsn); err != nil {
		return err
	}
	version, _, err := storage.MigrationVersion(dialect, dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", dialect, version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	dialect, dsn, err := sqlDialect()
	if err != nil {
		return err
	}
	version, dirty, err := storage.MigrationVersion(dialect, dsn)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d (%s)\n", dialect, version, state)
	return nil
}
