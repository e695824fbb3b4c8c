package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-gateway/internal/app"
	"github.com/nhle/mail-gateway/internal/credential"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the IMAP command loop",
	Long: `Starts the HTTP API and, when imap.enabled is set, the IMAP command
loop. Runs until SIGINT or SIGTERM.

Secrets are read from EMAIL_PASSWORD, API_KEY and RESEND_API_KEY, or
from the system keyring (see "mailgateway credential set").`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	secrets, err := app.LoadSecrets(openKeyring())
	if err != nil {
		return err
	}
	if err := app.RequireSecrets(cfg, secrets); err != nil {
		return err
	}

	a, err := app.New(cfg, secrets)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

// openKeyring returns the system keyring, or nil when none is usable so
// that only the environment is consulted.
func openKeyring() *credential.Store {
	cred, err := credential.Open()
	if err != nil {
		return nil
	}
	return cred
}
