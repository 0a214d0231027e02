package main

import (
	"errors"
	"fmt"

	"github.com/pysugar/calsync/internal/db"
	"github.com/spf13/cobra"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCommand())
	return cmd
}

func newUserAddCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			_, database, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			user, err := db.NewUserStore(database).Create(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User email address")
	return cmd
}
