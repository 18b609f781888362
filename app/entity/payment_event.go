package entity

import "time"

type PaymentEvent struct {
	ID uint64

	OrderID *uint64

	// ProviderEventID is unique when set; locally generated events leave it nil.
	ProviderEventID *string
	EventType       string

	OldStatus *string
	NewStatus *string

	ProviderPaymentID *string
	PayloadJSON       *string

	CreatedAt time.Time
}
