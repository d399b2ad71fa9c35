package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/models"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in to LinkedIn and store the session",
	Long: `Opens a browser window on the LinkedIn login page, pre-filled with any
configured credentials. Finish the login (including any verification step),
then press Enter. The session is stored and reused by later runs until it
leaves the freshness window.`,
	RunE: runAuth,
}

var (
	authEmail    string
	authPassword string
)

func init() {
	authCmd.Flags().StringVar(&authEmail, "email", "", "Email to pre-fill (defaults to configuration)")
	authCmd.Flags().StringVar(&authPassword, "password", "", "Password to pre-fill (defaults to configuration)")
}

func runAuth(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	defaults := application.DefaultCredentials()
	email, password := authEmail, authPassword
	if email == "" {
		email = defaults.Email()
	}
	if password == "" {
		password = defaults.Password().Reveal()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Manual login does not need complete credentials: the user types them
	machine := application.NewMachine()
	defer machine.Close()

	ok := application.Orchestrator.Authenticate(ctx, machine, models.NewCredentials(email, password),
		enterToConfirm(cmd.InOrStdin(), cmd.OutOrStdout()))
	if !ok {
		return fmt.Errorf("login not completed (state %s)", machine.CurrentState())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in. Session stored at %s and valid for %s.\n",
		sessionLocation(), config.Session.FreshnessWindow.Duration())
	return nil
}

func sessionLocation() string {
	if config.Session.Store == common.SessionStoreBadger {
		return config.Storage.Badger.Path
	}
	return config.Session.Path
}
