package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender logs emails instead of sending them.
// Useful for development and testing.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a new log-based email sender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the email details and reports every recipient as delivered.
func (s *LogSender) Send(
	_ context.Context, msg Message,
) ([]SendResult, error) {
	results := make([]SendResult, 0, len(msg.To))
	for _, to := range msg.To {
		s.logger.Info().
			Str("to", to).
			Str("from_name", msg.FromName).
			Str("subject", msg.Subject).
			Str("text", msg.Text).
			Msg("EMAIL (dev mode - not actually sent)")
		results = append(results, SendResult{To: to, Success: true})
	}
	return results, nil
}
