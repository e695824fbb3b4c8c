package store_test

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/model"
	"github.com/nhle/mail-gateway/internal/store"
	"github.com/nhle/mail-gateway/tests/testutil"
)

func TestRecordAndListOutcomes(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first := store.NewOutcomeRecord(command.Outcome{
		Command: "health",
		Args:    []string{},
		Meta:    command.Meta{"subject": "COMMAND"},
		Handled: true,
		HandlerResult: map[string]any{
			"result": []string{"ok"},
		},
	}, model.OutcomeSourceIMAP)
	first.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.RecordOutcome(ctx, first))

	second := store.NewOutcomeRecord(command.Outcome{
		Command: "missing",
		Args:    []string{"a", "b"},
		Reason:  command.ReasonHandlerNotFound,
	}, model.OutcomeSourceHTTP)
	require.NoError(t, s.RecordOutcome(ctx, second))

	got, err := s.ListOutcomes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "missing", got[0].Command)
	assert.False(t, got[0].Handled)
	assert.Equal(t, command.ReasonHandlerNotFound, got[0].Reason)
	assert.Equal(t, `["a","b"]`, got[0].Args)
	assert.Equal(t, "{}", got[0].Meta)
	assert.Equal(t, "null", got[0].Result)
	assert.Equal(t, model.OutcomeSourceHTTP, got[0].Source)
	assert.NotEmpty(t, got[0].ID)

	assert.Equal(t, "health", got[1].Command)
	assert.True(t, got[1].Handled)
	assert.JSONEq(t, `{"result":["ok"]}`, got[1].Result)
	assert.JSONEq(t, `{"subject":"COMMAND"}`, got[1].Meta)

	limited, err := s.ListOutcomes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNewOutcomeRecord_UnencodableResult(t *testing.T) {
	rec := store.NewOutcomeRecord(command.Outcome{
		Command:       "weird",
		HandlerResult: math.Inf(1),
	}, model.OutcomeSourceCLI)

	var s string
	require.NoError(t, json.Unmarshal([]byte(rec.Result), &s))
	assert.Contains(t, s, "unencodable")
}

func TestRecordAndListDeliveries(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDelivery(ctx, model.Delivery{
		Recipient: "a@example.com",
		Subject:   "status",
		Success:   true,
	}))
	require.NoError(t, s.RecordDelivery(ctx, model.Delivery{
		Recipient: "b@example.com",
		Subject:   "status",
		Error:     "550 no such user",
	}))

	got, err := s.ListDeliveries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "b@example.com", got[0].Recipient)
	assert.False(t, got[0].Success)
	assert.Equal(t, "550 no such user", got[0].Error)
	assert.True(t, got[1].Success)
}

func TestProcessedMessages(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	done, err := s.IsProcessed(ctx, "abc@example.com")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkProcessed(ctx, "abc@example.com"))
	require.NoError(t, s.MarkProcessed(ctx, "abc@example.com"))

	done, err = s.IsProcessed(ctx, "abc@example.com")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gateway.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, "m1"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	done, err := s.IsProcessed(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, done)
}
