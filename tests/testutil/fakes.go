package testutil

import (
	"context"
	"sync"

	"github.com/nhle/mail-gateway/internal/mail"
)

// RecordingSender is a mail.Sender that keeps every message and reports
// each recipient as delivered, unless Err is set.
type RecordingSender struct {
	mu       sync.Mutex
	Messages []mail.Message
	Err      error
}

// Send implements mail.Sender.
func (s *RecordingSender) Send(_ context.Context, msg mail.Message) ([]mail.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages = append(s.Messages, msg)
	if s.Err != nil {
		return nil, s.Err
	}

	results := make([]mail.SendResult, 0, len(msg.To))
	for _, to := range msg.To {
		results = append(results, mail.SendResult{To: to, Success: true})
	}
	return results, nil
}

// Sent returns a copy of the messages sent so far.
func (s *RecordingSender) Sent() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.Messages...)
}

// LogEntry is one captured LogSink call.
type LogEntry struct {
	Level  string
	Msg    string
	Fields []any
}

// LogSink captures leveled log calls.
type LogSink struct {
	mu      sync.Mutex
	Entries []LogEntry
}

func (s *LogSink) add(level, msg string, fields []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append(s.Entries, LogEntry{Level: level, Msg: msg, Fields: fields})
}

// Info implements command.LogSink.
func (s *LogSink) Info(msg string, fields ...any) { s.add("info", msg, fields) }

// Warn implements command.LogSink.
func (s *LogSink) Warn(msg string, fields ...any) { s.add("warn", msg, fields) }

// Error implements command.LogSink.
func (s *LogSink) Error(msg string, fields ...any) { s.add("error", msg, fields) }

// Messages returns the captured messages in order.
func (s *LogSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.Msg)
	}
	return out
}
