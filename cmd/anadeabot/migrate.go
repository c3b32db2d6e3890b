package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vintoniuk/anadeabot/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(m *store.Migrator) error { return m.Up() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the latest migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(m *store.Migrator) error { return m.Down() })
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(m *store.Migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) error {
	s, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if s.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}

	m, err := store.NewMigrator(s.Postgres.DSN)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return errors.Join(err, m.Close())
	}
	v, _, err := m.Version()
	if err == nil {
		logger.Info("schema migrated", "version", v)
	}
	return m.Close()
}
