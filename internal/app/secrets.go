package app

import (
	"errors"
	"fmt"

	"github.com/nhle/mail-gateway/internal/credential"
	"github.com/nhle/mail-gateway/internal/model"
)

// Secrets are the credentials resolved at startup.
type Secrets struct {
	EmailPassword string
	APIKey        string
	ResendAPIKey  string
}

// LoadSecrets resolves every known secret from the environment or the
// keyring. Missing secrets are left empty; RequireSecrets reports them.
func LoadSecrets(cred *credential.Store) (Secrets, error) {
	var s Secrets
	targets := []struct {
		dst    *string
		key    string
		envVar string
	}{
		{&s.EmailPassword, credential.KeyEmailPassword, credential.EnvEmailPassword},
		{&s.APIKey, credential.KeyAPIKey, credential.EnvAPIKey},
		{&s.ResendAPIKey, credential.KeyResendAPIKey, credential.EnvResendAPIKey},
	}

	for _, t := range targets {
		v, err := cred.Resolve(t.key, t.envVar)
		if err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				continue
			}
			return s, err
		}
		*t.dst = v
	}
	return s, nil
}

// RequireSecrets checks that the secrets needed to serve cfg are present.
func RequireSecrets(cfg *model.AppConfig, s Secrets) error {
	needPassword := cfg.IMAP.Enabled || cfg.Mail.Provider == "smtp"
	if needPassword && s.EmailPassword == "" {
		return fmt.Errorf("%w: %s (keyring %q)",
			model.ErrMissingSetting, credential.EnvEmailPassword, credential.KeyEmailPassword)
	}
	if s.APIKey == "" {
		return fmt.Errorf("%w: %s (keyring %q)",
			model.ErrMissingSetting, credential.EnvAPIKey, credential.KeyAPIKey)
	}
	if cfg.Mail.Provider == "resend" && s.ResendAPIKey == "" {
		return fmt.Errorf("%w: %s (keyring %q)",
			model.ErrMissingSetting, credential.EnvResendAPIKey, credential.KeyResendAPIKey)
	}
	return nil
}
