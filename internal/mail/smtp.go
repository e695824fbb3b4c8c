package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog"
)

// SMTPConfig holds the SMTP server settings for sending mail.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string

	// TLS selects implicit TLS; otherwise STARTTLS is used.
	TLS bool

	// SendInterval is the pause between two recipients.
	SendInterval time.Duration
}

// SMTPSender delivers messages through an authenticated SMTP server,
// one copy per recipient over a single connection.
type SMTPSender struct {
	cfg    SMTPConfig
	logger zerolog.Logger
	dial   func(addr string, cfg SMTPConfig) (*smtp.Client, error)
	now    func() time.Time
}

// NewSMTPSender creates a sender for cfg. Deliveries are logged to logger.
func NewSMTPSender(cfg SMTPConfig, logger zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		logger: logger,
		dial:   dialSMTP,
		now:    time.Now,
	}
}

// dialSMTP opens an implicit TLS or STARTTLS connection.
func dialSMTP(addr string, cfg SMTPConfig) (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if cfg.TLS {
		return smtp.DialTLS(addr, tlsConfig)
	}
	return smtp.DialStartTLS(addr, tlsConfig)
}

// Send implements Sender.
func (s *SMTPSender) Send(
	ctx context.Context, msg Message,
) ([]SendResult, error) {
	addr := s.cfg.Host + ":" + s.cfg.Port

	client, err := s.dial(addr, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}
	defer func() { _ = client.Close() }()

	auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	if err := client.Auth(auth); err != nil {
		return nil, &AuthError{
			Protocol: "smtp",
			Message:  fmt.Sprintf("authentication failed for %s: %v", s.cfg.Username, err),
		}
	}

	results := make([]SendResult, 0, len(msg.To))
	for i, to := range msg.To {
		result := SendResult{To: to, Success: true}

		if err := s.sendOne(client, msg, to); err != nil {
			result.Success = false
			result.Error = err.Error()
			s.logger.Error().
				Str("to", to).
				Str("subject", msg.Subject).
				Err(err).
				Msg("FAIL")
			// Clear any half-finished transaction before the next recipient.
			_ = client.Reset()
		} else {
			s.logger.Info().
				Str("to", to).
				Str("subject", msg.Subject).
				Msg("SUCCESS")
		}
		results = append(results, result)

		if i != len(msg.To)-1 {
			if err := pause(ctx, s.cfg.SendInterval); err != nil {
				return results, err
			}
		}
	}

	_ = client.Quit()
	return results, nil
}

func (s *SMTPSender) sendOne(client *smtp.Client, msg Message, to string) error {
	body, err := composeMessage(s.cfg.Username, msg, to, s.now())
	if err != nil {
		return err
	}
	if err := client.SendMail(s.cfg.Username, []string{to}, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("sending to %s: %w", to, err)
	}
	return nil
}
