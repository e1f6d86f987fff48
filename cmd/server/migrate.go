package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and list the applied set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			db, err := openDB(cfg.DB.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.AppliedMigrations()
			if err != nil {
				return fmt.Errorf("listing migrations: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, name := range applied {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
