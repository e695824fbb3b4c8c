package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-gateway/internal/model"
)

func TestSink_WritesKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(zerolog.New(&buf))

	sink.Warn("COMMAND_HANDLER_NOT_FOUND", "name", "reload", "args", []string{"a"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "COMMAND_HANDLER_NOT_FOUND", line["message"])
	assert.Equal(t, "reload", line["name"])
	assert.Equal(t, []any{"a"}, line["args"])
}

func TestSink_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(zerolog.New(&buf))

	sink.Error("oops", "name", "x", "dangling")

	assert.Contains(t, buf.String(), `"extra":"dangling"`)
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestNamed(t *testing.T) {
	var buf bytes.Buffer
	logger := Named(zerolog.New(&buf), SendLogger)

	logger.Info().Msg("SUCCESS")

	assert.Contains(t, buf.String(), `"logger":"send"`)
}

func TestNew_FileAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "requests.log")

	logger, closer, err := New(model.LogConfig{Level: "warn", File: path})
	require.NoError(t, err)

	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "dropped"))
	assert.Contains(t, string(data), "kept")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(model.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
