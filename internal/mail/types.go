// Package mail sends gateway email and reads command email from an IMAP
// folder.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is one outgoing email addressed to one or more recipients.
// Each recipient receives a separate copy.
type Message struct {
	Subject  string
	Text     string
	HTML     string // optional
	FromName string
	To       []string
}

// SendResult reports the delivery of a Message to one recipient.
type SendResult struct {
	To      string `json:"to"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Sender delivers messages. A returned error means nothing could be
// sent (connection or login failure); per-recipient failures are
// reported in the results instead.
type Sender interface {
	Send(ctx context.Context, msg Message) ([]SendResult, error)
}

// AuthError indicates that a mail server rejected the credentials.
type AuthError struct {
	Protocol string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Protocol, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ParsedMessage holds the parts of an incoming email the gateway uses.
type ParsedMessage struct {
	UID       uint32
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	TextBody  string
	HTMLBody  string
}

// CommandBody returns the text a command is parsed from: the plain text
// body, or the HTML body when the message has no plain text part.
func (m *ParsedMessage) CommandBody() string {
	if m.TextBody != "" {
		return m.TextBody
	}
	return m.HTMLBody
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
