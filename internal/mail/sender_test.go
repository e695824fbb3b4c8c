package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-gateway/internal/model"
)

func TestLogSender_Send(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(zerolog.New(&buf))

	results, err := sender.Send(context.Background(), Message{
		Subject: "Test Subject",
		Text:    "Hello",
		To:      []string{"test@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, []SendResult{{To: "test@example.com", Success: true}}, results)
	assert.Contains(t, buf.String(), "test@example.com")
	assert.Contains(t, buf.String(), "Test Subject")
	assert.Contains(t, buf.String(), "dev mode")
}

type fakeSender struct {
	results []SendResult
	err     error
}

func (f fakeSender) Send(context.Context, Message) ([]SendResult, error) {
	return f.results, f.err
}

type memoryRecorder struct {
	deliveries []model.Delivery
	err        error
}

func (m *memoryRecorder) RecordDelivery(_ context.Context, d model.Delivery) error {
	if m.err != nil {
		return m.err
	}
	m.deliveries = append(m.deliveries, d)
	return nil
}

func TestRecordingSender_StoresEveryResult(t *testing.T) {
	rec := &memoryRecorder{}
	sender := NewRecordingSender(fakeSender{results: []SendResult{
		{To: "a@example.com", Success: true},
		{To: "b@example.com", Success: false, Error: "550"},
	}}, rec, nil)

	results, err := sender.Send(context.Background(), Message{Subject: "s"})
	require.NoError(t, err)

	assert.Len(t, results, 2)
	require.Len(t, rec.deliveries, 2)
	assert.Equal(t, "b@example.com", rec.deliveries[1].Recipient)
	assert.Equal(t, "550", rec.deliveries[1].Error)
	assert.Equal(t, "s", rec.deliveries[0].Subject)
}

func TestRecordingSender_RecorderErrorDoesNotFailSend(t *testing.T) {
	var reported []error
	sender := NewRecordingSender(
		fakeSender{results: []SendResult{{To: "a@example.com", Success: true}}},
		&memoryRecorder{err: errors.New("disk full")},
		func(err error) { reported = append(reported, err) },
	)

	results, err := sender.Send(context.Background(), Message{})
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.Len(t, reported, 1)
}

func TestIsAuthError(t *testing.T) {
	err := &AuthError{Protocol: "imap", Message: "bad password"}

	assert.True(t, IsAuthError(err))
	assert.True(t, IsAuthError(errors.Join(errors.New("wrapped"), err)))
	assert.False(t, IsAuthError(errors.New("other")))
	assert.Equal(t, "auth error (imap): bad password", err.Error())
}
