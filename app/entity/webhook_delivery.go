package entity

import "time"

const (
	WebhookDeliveryProcessed int32 = 10
	WebhookDeliveryDuplicate int32 = 15
	WebhookDeliveryRejected  int32 = 20
	WebhookDeliveryFailed    int32 = 30
)

// WebhookDelivery is an audit row for every webhook request, including the
// ones whose signature did not match.
type WebhookDelivery struct {
	ID uint64

	EventID   *string
	EventType *string

	Signature string
	Payload   string
	RemoteIP  string
	Status    int32
	Error     *string

	CreatedAt time.Time
}
