package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedMail struct {
	from string
	to   []string
	data []byte
}

type testBackend struct {
	mu         sync.Mutex
	received   []receivedMail
	rejectRcpt string
}

func (b *testBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &testSession{backend: b}, nil
}

func (b *testBackend) mails() []receivedMail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]receivedMail(nil), b.received...)
}

type testSession struct {
	backend *testBackend
	from    string
	to      []string
}

func (s *testSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *testSession) Auth(_ string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != "gateway@example.com" || password != "secret" {
			return errors.New("invalid credentials")
		}
		return nil
	}), nil
}

func (s *testSession) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *testSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.rejectRcpt {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "no such user",
		}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.received = append(s.backend.received, receivedMail{
		from: s.from,
		to:   s.to,
		data: data,
	})
	return nil
}

func (s *testSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *testSession) Logout() error { return nil }

// startSMTPServer runs an in-process SMTP server and returns a sender
// pointed at it over a plain connection.
func startSMTPServer(t *testing.T, be *testBackend, password string, logOut io.Writer) *SMTPSender {
	t.Helper()

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	sender := NewSMTPSender(SMTPConfig{
		Host:     host,
		Port:     port,
		Username: "gateway@example.com",
		Password: password,
	}, zerolog.New(logOut))
	sender.dial = func(addr string, _ SMTPConfig) (*smtp.Client, error) {
		return smtp.Dial(addr)
	}
	return sender
}

func TestSMTPSender_SendsOneCopyPerRecipient(t *testing.T) {
	be := &testBackend{}
	var logs bytes.Buffer
	sender := startSMTPServer(t, be, "secret", &logs)

	results, err := sender.Send(context.Background(), Message{
		Subject:  "status",
		Text:     "online",
		HTML:     "<b>online</b>",
		FromName: "Email Service",
		To:       []string{"a@example.com", "b@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, []SendResult{
		{To: "a@example.com", Success: true},
		{To: "b@example.com", Success: true},
	}, results)

	mails := be.mails()
	require.Len(t, mails, 2)
	assert.Equal(t, "gateway@example.com", mails[0].from)
	assert.Equal(t, []string{"a@example.com"}, mails[0].to)
	assert.Equal(t, []string{"b@example.com"}, mails[1].to)
	assert.Contains(t, string(mails[0].data), "multipart/alternative")
	assert.Contains(t, logs.String(), `"message":"SUCCESS"`)
}

func TestSMTPSender_RecipientFailureIsReported(t *testing.T) {
	be := &testBackend{rejectRcpt: "bad@example.com"}
	var logs bytes.Buffer
	sender := startSMTPServer(t, be, "secret", &logs)

	results, err := sender.Send(context.Background(), Message{
		Subject: "status",
		Text:    "online",
		To:      []string{"bad@example.com", "good@example.com"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Error)
	assert.True(t, results[1].Success)
	assert.Len(t, be.mails(), 1)
	assert.Contains(t, logs.String(), `"message":"FAIL"`)
}

func TestSMTPSender_AuthFailure(t *testing.T) {
	sender := startSMTPServer(t, &testBackend{}, "wrong", io.Discard)

	_, err := sender.Send(context.Background(), Message{
		Subject: "status",
		To:      []string{"a@example.com"},
	})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}
