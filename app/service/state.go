package service

import (
	"github.com/vibast-solutions/ms-go-razorpay/app/entity"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
)

// Locally generated ledger events. Provider events use the webhook names.
const (
	EventOrderCreated    = "order_created"
	EventPaymentVerified = "payment_verified"
	EventOrderReconciled = "order_reconciled"
	EventOrderExpired    = "order_expired"
)

type transition struct {
	from []string
	to   string
}

var transitions = map[string]transition{
	EventPaymentVerified: {
		from: []string{entity.OrderStatusCreated},
		to:   entity.OrderStatusAwaitingPayment,
	},
	provider.EventPaymentAuthorized: {
		from: []string{entity.OrderStatusCreated},
		to:   entity.OrderStatusAwaitingPayment,
	},
	provider.EventPaymentCaptured: {
		from: []string{entity.OrderStatusCreated, entity.OrderStatusAwaitingPayment, entity.OrderStatusFailed},
		to:   entity.OrderStatusPaid,
	},
	provider.EventOrderPaid: {
		from: []string{entity.OrderStatusCreated, entity.OrderStatusAwaitingPayment, entity.OrderStatusFailed},
		to:   entity.OrderStatusPaid,
	},
	EventOrderReconciled: {
		from: []string{entity.OrderStatusCreated, entity.OrderStatusAwaitingPayment, entity.OrderStatusFailed},
		to:   entity.OrderStatusPaid,
	},
	provider.EventPaymentFailed: {
		from: []string{entity.OrderStatusCreated, entity.OrderStatusAwaitingPayment},
		to:   entity.OrderStatusFailed,
	},
	EventOrderExpired: {
		from: []string{entity.OrderStatusCreated, entity.OrderStatusAwaitingPayment},
		to:   entity.OrderStatusFailed,
	},
	provider.EventRefundProcessed: {
		from: []string{entity.OrderStatusPaid},
		to:   entity.OrderStatusRefunded,
	},
}

// NextStatus returns the status an order in current moves to on eventType.
// The second result is false when the event does not move the order, which
// includes stale or repeated events.
func NextStatus(current, eventType string) (string, bool) {
	t, ok := transitions[eventType]
	if !ok {
		return current, false
	}
	for _, from := range t.from {
		if from == current {
			return t.to, true
		}
	}
	return current, false
}
