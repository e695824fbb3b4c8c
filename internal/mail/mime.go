package mail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// parseMessage parses a raw RFC 5322 message using go-message, decoding
// encoded headers and non-UTF-8 charsets. The first non-attachment
// text/plain and text/html parts become the bodies.
func parseMessage(raw []byte) *ParsedMessage {
	parsed := &ParsedMessage{}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		// If parsing fails, treat the whole thing as plain text.
		parsed.TextBody = string(raw)
		return parsed
	}
	defer mr.Close()

	if subject, err := mr.Header.Subject(); err == nil {
		parsed.Subject = subject
	} else {
		parsed.Subject = mr.Header.Get("Subject")
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		parsed.From = from[0].String()
	} else {
		parsed.From = mr.Header.Get("From")
	}
	if id, err := mr.Header.MessageID(); err == nil {
		parsed.MessageID = id
	}
	if date, err := mr.Header.Date(); err == nil {
		parsed.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			break
		}
		if part == nil {
			continue
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments never carry commands.
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case contentType == "" || strings.HasPrefix(contentType, "text/plain"):
			if parsed.TextBody == "" {
				parsed.TextBody = string(body)
			}
		case strings.HasPrefix(contentType, "text/html"):
			if parsed.HTMLBody == "" {
				parsed.HTMLBody = string(body)
			}
		}
	}

	return parsed
}

// composeMessage renders msg for a single recipient as a
// multipart/alternative email. Empty text or HTML bodies are left out.
func composeMessage(
	fromAddr string, msg Message, to string, now time.Time,
) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: msg.FromName, Address: fromAddr}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(msg.Subject)

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	parts := []struct {
		mediaType string
		body      string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		var ph mail.InlineHeader
		ph.SetContentType(p.mediaType, map[string]string{"charset": "utf-8"})
		pw, err := w.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("creating %s part: %w", p.mediaType, err)
		}
		if _, err := io.WriteString(pw, p.body); err != nil {
			return nil, fmt.Errorf("writing %s part: %w", p.mediaType, err)
		}
		if err := pw.Close(); err != nil {
			return nil, fmt.Errorf("closing %s part: %w", p.mediaType, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}
