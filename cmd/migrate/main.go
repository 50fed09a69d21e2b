// Command migrate applies or rolls back the embedded schema migrations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/logger"
)

var dbURL string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the HabitHero database schema",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dbURL == "" {
			dbURL = os.Getenv("DATABASE_URL")
		}
		if dbURL == "" {
			return fmt.Errorf("DATABASE_URL is not set and --database-url was not given")
		}
		return nil
	},
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return database.RunMigrations(dbURL)
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return database.RollbackMigration(dbURL)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, dirty, err := database.MigrationVersion(dbURL)
		if err != nil {
			return err
		}
		slog.Info("Schema version", "version", version, "dirty", dirty)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "database-url", "", "Postgres URL (defaults to $DATABASE_URL)")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func main() {
	_ = godotenv.Load()
	logger.Setup(true)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Migration command failed", "error", err)
		os.Exit(1)
	}
}
