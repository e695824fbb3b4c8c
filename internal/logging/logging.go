// Package logging builds the gateway's zerolog loggers and adapts them
// to the command.LogSink interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/mail-gateway/internal/model"
)

// Logger names, matching the two streams the gateway writes.
const (
	RequestLogger = "request"
	SendLogger    = "send"
)

// New builds the root logger from cfg. The returned closer releases the
// log file, if one was opened.
func New(cfg model.LogConfig) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		out = f
		closer = f
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.DateTime,
			NoColor:    cfg.File != "",
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

// Named returns a child logger tagged with the given stream name.
func Named(root zerolog.Logger, name string) zerolog.Logger {
	return root.With().Str("logger", name).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Sink adapts a zerolog.Logger to command.LogSink. Fields are
// alternating key/value pairs; a trailing key without a value is logged
// under "extra".
type Sink struct {
	logger zerolog.Logger
}

// NewSink wraps logger.
func NewSink(logger zerolog.Logger) *Sink {
	return &Sink{logger: logger}
}

// Info logs at info level.
func (s *Sink) Info(msg string, fields ...any) {
	s.emit(s.logger.Info(), msg, fields)
}

// Warn logs at warn level.
func (s *Sink) Warn(msg string, fields ...any) {
	s.emit(s.logger.Warn(), msg, fields)
}

// Error logs at error level.
func (s *Sink) Error(msg string, fields ...any) {
	s.emit(s.logger.Error(), msg, fields)
}

func (s *Sink) emit(ev *zerolog.Event, msg string, fields []any) {
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			ev = ev.Interface("extra", fields[i])
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		ev = ev.Interface(key, fields[i+1])
	}
	ev.Msg(msg)
}
