package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/bher20/equotemanager/internal/auth"
	"github.com/spf13/cobra"
)

var (
	userName     string
	userPassword string
	userRole     string
	tokenName    string
	tokenExpires string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage admin users",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userName == "" || userPassword == "" {
			return errors.New("--username and --password are required")
		}
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		svc, err := auth.NewService(env.Store)
		if err != nil {
			return err
		}
		u, err := svc.Register(cmd.Context(), userName, userPassword, userRole)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s) id=%s\n", u.Username, u.Role, u.ID)
		return nil
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage API tokens",
}

var tokensCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userName == "" {
			return errors.New("--username is required")
		}
		expiresAt, err := auth.TokenExpiry(tokenExpires, time.Now())
		if err != nil {
			return err
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		u, err := env.Store.GetUserByUsername(cmd.Context(), userName)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %q not found", userName)
		}

		svc, err := auth.NewService(env.Store)
		if err != nil {
			return err
		}
		name := tokenName
		if name == "" {
			name = "cli"
		}
		t, raw, err := svc.CreateToken(cmd.Context(), u.ID, name, u.Role, expiresAt)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "token id=%s role=%s\n%s\n", t.ID, t.Role, raw)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&userName, "username", "", "login name")
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "password")
	usersCreateCmd.Flags().StringVar(&userRole, "role", auth.RoleViewer, "admin, editor or viewer")
	usersCmd.AddCommand(usersCreateCmd)

	tokensCreateCmd.Flags().StringVar(&userName, "username", "", "token owner")
	tokensCreateCmd.Flags().StringVar(&tokenName, "name", "", "label for the token")
	tokensCreateCmd.Flags().StringVar(&tokenExpires, "expires-in", "30d", "lifetime such as 12h, 30d or never")
	tokensCmd.AddCommand(tokensCreateCmd)

	rootCmd.AddCommand(usersCmd, tokensCmd)
}
