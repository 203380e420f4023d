package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/udec-estadio/humidityboard/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  `Apply every embedded migration that has not been recorded in schema_migrations yet.`,
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations have been applied",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)

	dbManager, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer dbManager.Close()

	if err := dbManager.Init(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Println("Database is up to date.")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	a := appFrom(cmd)

	dbManager, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer dbManager.Close()

	runner, err := database.NewMigrationsRunner(dbManager.GetDB())
	if err != nil {
		return err
	}
	runner.SetLogger(a.logger)

	applied, err := runner.AppliedVersions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read schema_migrations (run `humidityboard migrate` first): %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS")
	for _, m := range runner.Migrations() {
		status := "pending"
		if applied[m.Version] {
			status = "applied"
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", m.Version, m.Name, status)
	}
	return tw.Flush()
}
