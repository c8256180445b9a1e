package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"backoffice/internal/database"
	"backoffice/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		url, err := migrateURL()
		if err != nil {
			return err
		}
		if err := database.MigrateUp(url); err != nil {
			return err
		}
		logger.Get().Info("Migrations applied successfully")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [N]",
	Short: "Roll back N migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count: %w", err)
			}
			steps = n
		}
		url, err := migrateURL()
		if err != nil {
			return err
		}
		if err := database.MigrateDown(url, steps); err != nil {
			return err
		}
		logger.Get().Infof("Rolled back %d migration(s)", steps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		url, err := migrateURL()
		if err != nil {
			return err
		}
		version, dirty, err := database.MigrationVersion(url)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %d, Dirty: %v\n", version, dirty)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func migrateURL() (string, error) {
	cfg, err := database.NewConfig()
	if err != nil {
		return "", fmt.Errorf("failed to load database configuration: %w", err)
	}
	return cfg.MigrateURL(), nil
}
