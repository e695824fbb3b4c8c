package store

import (
	"context"

	"github.com/nhle/mail-gateway/internal/model"
)

// Store defines the persistence interface for the gateway's audit trail:
// dispatch outcomes, email deliveries and processed command messages.
type Store interface {
	// === Outcomes ===

	RecordOutcome(ctx context.Context, rec model.OutcomeRecord) error
	ListOutcomes(ctx context.Context, limit int) ([]model.OutcomeRecord, error)

	// === Deliveries ===

	RecordDelivery(ctx context.Context, d model.Delivery) error
	ListDeliveries(ctx context.Context, limit int) ([]model.Delivery, error)

	// === Processed messages ===

	MarkProcessed(ctx context.Context, messageID string) error
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	Close() error
}
