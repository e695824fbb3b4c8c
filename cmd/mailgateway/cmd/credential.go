package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-gateway/internal/credential"
)

var credentialValue string

var knownCredentialKeys = []string{
	credential.KeyEmailPassword,
	credential.KeyAPIKey,
	credential.KeyResendAPIKey,
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage secrets in the system keyring",
	Long: `Stores or removes gateway secrets in the system keyring.

Keys: email-password, api-key, resend-api-key.
Environment variables (EMAIL_PASSWORD, API_KEY, RESEND_API_KEY) take
precedence over keyring entries.`,
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store a secret (read from --value or stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := checkCredentialKey(args[0])
		if err != nil {
			return err
		}

		value := credentialValue
		if value == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", key)
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading value: %w", err)
			}
			value = strings.TrimSpace(line)
		}
		if value == "" {
			return fmt.Errorf("empty value for %s", key)
		}

		cred, err := credential.Open()
		if err != nil {
			return err
		}
		if err := cred.Set(key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", key)
		return nil
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := checkCredentialKey(args[0])
		if err != nil {
			return err
		}

		cred, err := credential.Open()
		if err != nil {
			return err
		}
		if err := cred.Delete(key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
		return nil
	},
}

func checkCredentialKey(key string) (string, error) {
	for _, k := range knownCredentialKeys {
		if k == key {
			return key, nil
		}
	}
	return "", fmt.Errorf("unknown credential %q (want one of %s)", key, strings.Join(knownCredentialKeys, ", "))
}

func init() {
	credentialSetCmd.Flags().StringVar(&credentialValue, "value", "", "secret value (prompted when omitted)")
	credentialCmd.AddCommand(credentialSetCmd, credentialDeleteCmd)
	rootCmd.AddCommand(credentialCmd)
}
