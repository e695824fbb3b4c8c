package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends emails using the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a new Resend email sender. from is the bare
// sender address; each message's FromName is added as display name.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send implements Sender, issuing one API call per recipient.
func (s *ResendSender) Send(
	ctx context.Context, msg Message,
) ([]SendResult, error) {
	from := s.from
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, s.from)
	}

	results := make([]SendResult, 0, len(msg.To))
	for _, to := range msg.To {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		params := &resend.SendEmailRequest{
			From:    from,
			To:      []string{to},
			Subject: msg.Subject,
			Html:    msg.HTML,
			Text:    msg.Text,
		}

		result := SendResult{To: to, Success: true}
		if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
			result.Success = false
			result.Error = fmt.Sprintf("resend: failed to send email: %v", err)
		}
		results = append(results, result)
	}

	return results, nil
}
