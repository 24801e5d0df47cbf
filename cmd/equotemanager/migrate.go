package main

import (
	"fmt"

	"github.com/bher20/equotemanager/internal/migrate"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

func sqlDriver() (string, error) {
	if cfg.DB.Driver == "memory" {
		return "", fmt.Errorf("db.driver is memory; nothing to migrate")
	}
	return cfg.DB.Driver, nil
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		drv, err := sqlDriver()
		if err != nil {
			return err
		}
		return migrate.Up(cmd.Context(), drv, cfg.DB.DSN)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		drv, err := sqlDriver()
		if err != nil {
			return err
		}
		return migrate.Down(cmd.Context(), drv, cfg.DB.DSN)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		drv, err := sqlDriver()
		if err != nil {
			return err
		}
		return migrate.Status(cmd.Context(), drv, cfg.DB.DSN)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
