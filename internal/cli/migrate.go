package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seuros/amiri/internal/database"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := migrationURL()
		if err != nil {
			return err
		}
		if err := database.RunMigrations(url); err != nil {
			return err
		}
		return printMigrationVersion(cmd, url)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [--steps N]",
	Short: "Revert migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := migrationURL()
		if err != nil {
			return err
		}
		if err := database.RollbackMigrations(url, migrateSteps); err != nil {
			return err
		}
		return printMigrationVersion(cmd, url)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := migrationURL()
		if err != nil {
			return err
		}
		return printMigrationVersion(cmd, url)
	},
}

func migrationURL() (string, error) {
	cfg, err := loadConfig(0)
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", database.ErrNoDatabaseURL
	}
	return cfg.DatabaseURL, nil
}

func printMigrationVersion(cmd *cobra.Command, url string) error {
	version, dirty, err := database.GetMigrationVersion(url)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d of %d (%s)\n", version, database.LatestVersion, state)
	return nil
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to revert")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	RootCmd.AddCommand(migrateCmd)
}
