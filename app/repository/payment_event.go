package repository

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-razorpay/app/entity"
)

var ErrEventAlreadyExists = errors.New("payment event already recorded")

type PaymentEventRepository struct {
	db DBTX
}

func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

// Create fails with ErrEventAlreadyExists when ProviderEventID was seen before.
func (r *PaymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (
			order_id, provider_event_id, event_type, old_status, new_status,
			provider_payment_id, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableUint64Value(event.OrderID),
		nullableStringValue(event.ProviderEventID),
		event.EventType,
		nullableStringValue(event.OldStatus),
		nullableStringValue(event.NewStatus),
		nullableStringValue(event.ProviderPaymentID),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrEventAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}
