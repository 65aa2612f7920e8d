package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Time Doctor and refresh the cached token",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	if cfg.TimeDoctor.Email == "" || cfg.TimeDoctor.Password == "" {
		return fmt.Errorf("%w: Time Doctor credentials missing (TD_USER_EMAIL / TD_USER_PASSWORD)", model.ErrConfiguration)
	}

	tok, err := newAuthProvider().Login(cmd.Context())
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Logged in as %s.\n", cfg.TimeDoctor.Email)
	if cfg.TimeDoctor.TokenCache != "" {
		fmt.Printf("Token cached in %s until %s.\n", cfg.TimeDoctor.TokenCache, tok.Expiry.Local().Format("2006-01-02"))
	}
	return nil
}
