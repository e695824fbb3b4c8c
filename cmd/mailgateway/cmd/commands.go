package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/handlers"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands the gateway understands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reg := command.NewRegistry()
		deps := handlers.Deps{}
		if cfg.Handlers.RelayURL != "" {
			deps.Relay = handlers.NewRelayClient(cfg.Handlers.RelayURL, "", 0, "", "")
		}
		handlers.RegisterAll(reg, deps)

		for _, name := range reg.Names() {
			fmt.Fprintf(cmd.OutOrStdout(), "/%s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commandsCmd)
}
