package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/model"
)

// NewOutcomeRecord converts a dispatch outcome into its stored form.
// Values that cannot be encoded as JSON are stored as their error text
// so the audit row is never lost.
func NewOutcomeRecord(out command.Outcome, source string) model.OutcomeRecord {
	return model.OutcomeRecord{
		Command:   out.Command,
		Args:      toJSON(out.Args, "[]"),
		Handled:   out.Handled,
		Reason:    out.Reason,
		Error:     out.Error,
		Meta:      toJSON(out.Meta, "{}"),
		Result:    toJSON(out.HandlerResult, "null"),
		Source:    source,
		CreatedAt: time.Now(),
	}
}

func toJSON(v any, empty string) string {
	if v == nil {
		return empty
	}
	data, err := json.Marshal(v)
	if err != nil {
		quoted, _ := json.Marshal(fmt.Sprintf("unencodable: %v", err))
		return string(quoted)
	}
	if string(data) == "null" {
		return empty
	}
	return string(data)
}

// RecordOutcome inserts a dispatch outcome. If the record has no ID, a
// new UUID is generated.
func (s *SQLiteStore) RecordOutcome(
	ctx context.Context,
	rec model.OutcomeRecord,
) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (
			id, command, args, handled, reason, error,
			meta, result, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Command, rec.Args, boolToInt(rec.Handled),
		rec.Reason, rec.Error, rec.Meta, rec.Result, rec.Source,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", rec.Command, err)
	}

	return nil
}

// ListOutcomes returns the most recent dispatch outcomes, newest first.
func (s *SQLiteStore) ListOutcomes(
	ctx context.Context,
	limit int,
) ([]model.OutcomeRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var records []model.OutcomeRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, command, args, handled, reason, error,
			meta, result, source, created_at
		FROM outcomes
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}

	return records, nil
}
