package main

import (
	"errors"
	"fmt"

	"github.com/pysugar/calsync/internal/api/middleware"
	"github.com/pysugar/calsync/internal/db"
	"github.com/spf13/cobra"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage session tokens",
	}
	cmd.AddCommand(newSessionIssueCommand())
	return cmd
}

func newSessionIssueCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Print a session token for an existing user",
		Long: `Print a signed session token. Send it as "Authorization: Bearer <token>"
or in the ` + middleware.CookieName + ` cookie.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, database, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			if _, err := db.NewUserStore(database).Get(cmd.Context(), userID); err != nil {
				return fmt.Errorf("user %q: %w", userID, err)
			}
			secret, err := sessionSecret(cfg, database)
			if err != nil {
				return err
			}
			tok, err := middleware.NewVerifier(secret, middleware.DefaultSessionTTL).Issue(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	return cmd
}
