package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/internal/solidi"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and save the issued API key pair",
	Long: `Log in with an email and password. The issued API key pair is saved with
the configured credentials backend and used by every private command.

The password is read from SOLIDI_PASSWORD or prompted for. Pass --tfa
when the account has two-factor authentication enabled.`,
	Args: cobra.ExactArgs(1),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved API key pair",
	Args:  cobra.NoArgs,
}

func init() {
	loginCmd.Flags().String("tfa", "", "two-factor authentication code")

	loginCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		password, err := passwordFor(loginCmd)
		if err != nil {
			return err
		}
		tfa, _ := loginCmd.Flags().GetString("tfa")

		creds, err := a.svc.Login(ctx, args[0], password, tfa)
		if errors.Is(err, solidi.ErrTFARequired) {
			return fmt.Errorf("%w: rerun with --tfa <code>", err)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(loginCmd.OutOrStdout(), "Logged in. API key %s saved.\n", creds.KeyID())
		return nil
	})

	logoutCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		if err := a.svc.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(logoutCmd.OutOrStdout(), "Logged out.")
		return nil
	})

	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func passwordFor(cmd *cobra.Command) (string, error) {
	if p := os.Getenv("SOLIDI_PASSWORD"); p != "" {
		return p, nil
	}
	b, err := readSecret(cmd, "Password: ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
