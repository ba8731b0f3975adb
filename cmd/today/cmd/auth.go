package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/theakshaypant/today/internal/auth"
	"github.com/theakshaypant/today/internal/core"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Google sign-in",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Google",
	Long: `Sign in with Google using OAuth.

  1. Starts a local server to receive the OAuth callback
  2. Opens your browser to sign in
  3. Saves the token in the app data directory

A stored token that still works is reused; nothing is opened in that case.`,
	RunE: guarded(runLogin),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the stored token and sign in again",
	Long: `Revoke the stored token, delete it and start a new sign-in.
Pass --no-login to stay signed out.`,
	RunE: guarded(runLogout),
}

var noLogin bool

func init() {
	logoutCmd.Flags().BoolVar(&noLogin, "no-login", false, "do not sign in again after logging out")

	authCmd.AddCommand(loginCmd, logoutCmd)
	rootCmd.AddCommand(authCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	a := env.authenticator(env.consent(os.Stdout))
	if _, err := a.EnsureSession(cmd.Context()); err != nil {
		env.sink.Record("auth login", err)
		return fmt.Errorf("sign-in failed: %w", err)
	}
	fmt.Printf("✓ Signed in. Token saved to %s\n", dataPath("token_file"))
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	var consent auth.Consent = env.consent(os.Stdout)
	if noLogin {
		consent = auth.NoConsent{}
	}
	a := env.authenticator(consent)

	_, err := a.Logout(cmd.Context())
	switch {
	case err == nil:
		fmt.Println("✓ Signed out and signed in again.")
	case noLogin && errors.Is(err, core.ErrAuthUnrecoverable):
		// Re-authentication was refused on purpose
		fmt.Println("✓ Signed out.")
	default:
		env.sink.Record("auth logout", err)
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}
