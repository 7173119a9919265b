package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptobuddy/internal/database"
)

var (
	dryRun bool
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration management",
	Long: `Manage the MySQL schema used by the mysql storage backend.

Examples:
  cryptobuddy migrate up             # Run all pending migrations
  cryptobuddy migrate up --dry-run   # List pending migrations only
  cryptobuddy migrate status         # Show migration status`,
}

// migrateUpCmd runs pending migrations
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations()
	},
}

// migrateStatusCmd shows migration status
var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showMigrationStatus()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)

	migrateUpCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be executed without running")
}

func connectDB() (*database.MySQLClient, error) {
	cfg, log, err := loadRuntime()
	if err != nil {
		return nil, err
	}

	db, err := database.NewMySQLClient(&cfg.MySQL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func runMigrations() error {
	db, err := connectDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pending, err := db.Migrate(ctx, dryRun)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("No pending migrations")
		return nil
	}

	verb := "Applied"
	if dryRun {
		verb = "Would apply"
	}
	for _, m := range pending {
		fmt.Printf("%s %03d_%s\n", verb, m.Version, m.Name)
		if dryRun {
			fmt.Printf("%s\n\n", m.SQL)
		}
	}
	return nil
}

func showMigrationStatus() error {
	db, err := connectDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrations, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-8s %-30s %-8s %-20s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, m := range migrations {
		status := "pending"
		appliedAt := "-"
		if m.Applied {
			status = "applied"
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Printf("%-8d %-30s %-8s %-20s\n", m.Version, m.Name, status, appliedAt)
	}
	return nil
}
