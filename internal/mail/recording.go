package mail

import (
	"context"
	"time"

	"github.com/nhle/mail-gateway/internal/model"
)

// DeliveryRecorder persists delivery results.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, d model.Delivery) error
}

// RecordingSender wraps a Sender and stores every per-recipient result.
// Recording failures never affect the send itself.
type RecordingSender struct {
	next     Sender
	recorder DeliveryRecorder
	onError  func(error)
}

// NewRecordingSender decorates next. onError, when non-nil, is called
// for each result that could not be stored.
func NewRecordingSender(
	next Sender, recorder DeliveryRecorder, onError func(error),
) *RecordingSender {
	return &RecordingSender{next: next, recorder: recorder, onError: onError}
}

// Send implements Sender.
func (s *RecordingSender) Send(
	ctx context.Context, msg Message,
) ([]SendResult, error) {
	results, err := s.next.Send(ctx, msg)

	for _, r := range results {
		recErr := s.recorder.RecordDelivery(ctx, model.Delivery{
			Recipient: r.To,
			Subject:   msg.Subject,
			Success:   r.Success,
			Error:     r.Error,
			CreatedAt: time.Now(),
		})
		if recErr != nil && s.onError != nil {
			s.onError(recErr)
		}
	}

	return results, err
}
