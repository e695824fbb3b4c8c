package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nhle/mail-gateway/internal/mail"
	"github.com/nhle/mail-gateway/internal/model"
)

// newSender selects the delivery backend named by mail.provider.
func newSender(cfg *model.AppConfig, s Secrets, sendLog zerolog.Logger) (mail.Sender, error) {
	switch cfg.Mail.Provider {
	case "smtp":
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:         cfg.SMTP.Host,
			Port:         cfg.SMTP.Port,
			Username:     cfg.Mail.From,
			Password:     s.EmailPassword,
			TLS:          cfg.SMTP.TLS,
			SendInterval: cfg.SMTP.SendInterval(),
		}, sendLog), nil
	case "resend":
		return mail.NewResendSender(s.ResendAPIKey, cfg.Mail.From), nil
	case "log":
		return mail.NewLogSender(sendLog), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}
}
