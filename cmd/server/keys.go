package main

import (
	"errors"
	"fmt"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/sqlite"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	keys.AddCommand(newKeysAddCmd())
	return keys
}

func newKeysAddCmd() *cobra.Command {
	var (
		userID      string
		email       string
		description string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Issue an API key for a user and print the token",
		Long:  "Issue an API key for a user. The token is printed once; only its hash is stored.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
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

			token, err := sqlite.NewAPIKeyRepository(db).Create(cmd.Context(),
				activity.User{ID: userID, Email: email}, description)
			if err != nil {
				return fmt.Errorf("creating api key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id the key authenticates as")
	cmd.Flags().StringVar(&email, "email", "", "email recorded with the key")
	cmd.Flags().StringVar(&description, "description", "", "free-form note, e.g. the client the key is for")
	return cmd
}
