package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-gateway/internal/app"
	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/model"
)

var dispatchTimeout time.Duration

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <text>",
	Short: "Parse and run a command locally",
	Long: `Parses the given text exactly as a command email body and runs the
matching handler in-process. Prints the outcome as JSON.

Example:
  mailgateway dispatch "/health"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().DurationVar(&dispatchTimeout, "timeout", 2*time.Minute, "maximum time the handler may run")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	secrets, err := app.LoadSecrets(openKeyring())
	if err != nil {
		return err
	}

	a, err := app.New(cfg, secrets)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	text := strings.Join(args, " ")
	out, ok := a.Dispatch(ctx, text, model.OutcomeSourceCLI, command.Meta{"source": model.OutcomeSourceCLI})
	if !ok {
		return errors.New("no command parsed")
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if !out.Handled {
		return fmt.Errorf("command %q not handled: %s", out.Command, out.Reason)
	}
	return nil
}
