package main

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/auth"
	"github.com/user/pixledger/pkg/backend"
)

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().String("username", "", "account name (prompted when empty)")
	loginCmd.Flags().String("password", "", "password (prompted when empty)")

	registerCmd.Flags().String("username", "", "account name (prompted when empty)")
	registerCmd.Flags().String("email", "", "email address (prompted when empty)")
	registerCmd.Flags().String("password", "", "password (prompted when empty)")
}

// fillForm copies flag values into the form and prompts for anything still
// missing.
func fillForm(cmd *cobra.Command, flow *auth.Flow) {
	flow.Username, _ = cmd.Flags().GetString("username")
	flow.Password, _ = cmd.Flags().GetString("password")
	if flow.Mode() == auth.ModeRegister {
		flow.Email, _ = cmd.Flags().GetString("email")
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if flow.Username == "" {
		flow.Username = prompt(scanner, cmd.OutOrStdout(), "Username", "")
	}
	if flow.Mode() == auth.ModeRegister && flow.Email == "" {
		flow.Email = prompt(scanner, cmd.OutOrStdout(), "Email", "")
	}
	if flow.Password == "" {
		flow.Password = prompt(scanner, cmd.OutOrStdout(), "Password", "")
	}
}

func submitForm(cmd *cobra.Command, mode auth.Mode) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	flow := auth.NewFlow(a.client, a.session)
	flow.SetMode(mode)
	fillForm(cmd, flow)

	outcome, err := flow.Submit(cmd.Context())
	if err != nil {
		if msg := flow.Error(); msg != "" {
			return errors.New(msg)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if outcome.Notice != "" {
		fmt.Fprintln(out, outcome.Notice)
		fmt.Fprintln(out, "Log in with: pixledger login")
		return nil
	}
	fmt.Fprintf(out, "Logged in as %s.\n", flow.Username)
	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitForm(cmd, auth.ModeLogin)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitForm(cmd, auth.ModeRegister)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.session.Clear(); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if _, ok := a.session.Credential(); !ok {
			fmt.Fprintln(out, "Not logged in.")
			return nil
		}

		me, err := a.client.Me(cmd.Context())
		if errors.Is(err, backend.ErrUnauthorized) {
			if clearErr := a.session.Clear(); clearErr != nil {
				return clearErr
			}
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Username: %s\n", me.Username)
		fmt.Fprintf(out, "Email:    %s\n", me.Email)
		fmt.Fprintf(out, "User ID:  %d\n", me.UserID)
		fmt.Fprintf(out, "Joined:   %s\n", me.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}
