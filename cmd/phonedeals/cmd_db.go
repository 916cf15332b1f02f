package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/phonedeals/config"
	"github.com/shashiranjanraj/phonedeals/database/seeders"
	"github.com/shashiranjanraj/phonedeals/pkg/database"
	"github.com/shashiranjanraj/phonedeals/pkg/migration"
)

// bootDB loads config and opens the database connection.
func bootDB() (*gorm.DB, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	return database.Connect()
}

// phonedeals migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB()
		if err != nil {
			return err
		}
		ran, err := migration.New(db).Run()
		for _, name := range ran {
			fmt.Fprintln(cmd.OutOrStdout(), "migrated:", name)
		}
		if err == nil && len(ran) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to migrate.")
		}
		return err
	},
}

// phonedeals migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB()
		if err != nil {
			return err
		}
		reverted, err := migration.New(db).Rollback()
		for _, name := range reverted {
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back:", name)
		}
		if err == nil && len(reverted) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back.")
		}
		return err
	},
}

// phonedeals migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB()
		if err != nil {
			return err
		}
		rows, err := migration.New(db).Status()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "RAN\tBATCH\tMIGRATION")
		for _, r := range rows {
			ran, batch := "no", "-"
			if r.Ran {
				ran, batch = "yes", fmt.Sprint(r.Batch)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", ran, batch, r.Name)
		}
		return w.Flush()
	},
}

// phonedeals seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace users and listings with the development dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB()
		if err != nil {
			return err
		}
		return seeders.RunAll(db)
	},
}
