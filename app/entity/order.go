package entity

import "time"

const (
	OrderStatusCreated         = "created"
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusPaid            = "paid"
	OrderStatusFailed          = "failed"
	OrderStatusRefunded        = "refunded"
)

// Order is the gateway's record of a Razorpay order. The provider owns the
// order itself; this row tracks what we have been told about it.
type Order struct {
	ID uint64

	ProviderOrderID string
	Receipt         string

	AmountPaise int64
	Currency    string

	Status string

	ProviderPaymentID *string
	LastEventID       *string
	FailureReason     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
