package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/lineage/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply pending schema migrations and print the resulting schema version. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.OpenNoMigrate(cfg.DBPath)
		if err != nil {
			return dbError("opening database "+cfg.DBPath, err)
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		v, err := database.Version(db)
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		fmt.Printf("Schema at version %d (%s)\n", v, cfg.DBPath)
		return nil
	},
}
