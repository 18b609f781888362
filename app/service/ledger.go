package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-razorpay/app/entity"
	"github.com/vibast-solutions/ms-go-razorpay/app/factory"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
	"github.com/vibast-solutions/ms-go-razorpay/app/repository"
)

const (
	maxFailureReasonLength = 1024
	maxTransitionAttempts  = 3
)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	UpdateStatus(ctx context.Context, order *entity.Order, fromStatus string) error
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*entity.Order, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*entity.Order, error)
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

// Ledger is the gateway's own record of orders and the events that moved
// them. A nil *Ledger accepts writes and drops them.
type Ledger struct {
	orders orderRepository
	events paymentEventRepository
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewLedger(orders orderRepository, events paymentEventRepository) *Ledger {
	return &Ledger{
		orders: orders,
		events: events,
		logger: factory.NewModuleLogger("payment-ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordOrderCreated stores a freshly created provider order in state created.
func (l *Ledger) RecordOrderCreated(ctx context.Context, providerOrderID, receipt string, amountPaise int64, currency string) error {
	if l == nil {
		return nil
	}

	now := l.now()
	order := &entity.Order{
		ProviderOrderID: providerOrderID,
		Receipt:         receipt,
		AmountPaise:     amountPaise,
		Currency:        currency,
		Status:          entity.OrderStatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := l.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderAlreadyExists) {
			return nil
		}
		return err
	}

	newStatus := order.Status
	return l.events.Create(ctx, &entity.PaymentEvent{
		OrderID:   &order.ID,
		EventType: EventOrderCreated,
		NewStatus: &newStatus,
		CreatedAt: now,
	})
}

// RecordPayment notes a verified browser confirmation. The order moves to
// awaiting_payment; only the provider's webhook marks it paid.
func (l *Ledger) RecordPayment(ctx context.Context, providerOrderID, providerPaymentID string) error {
	if l == nil {
		return nil
	}

	order, err := l.orders.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}

	_, err = l.transition(ctx, order, EventPaymentVerified, ledgerChange{paymentID: providerPaymentID})
	return err
}

// ApplyWebhookEvent moves the referenced order according to a verified
// webhook and records the event under its provider id. Repeated event ids
// fail with ErrEventAlreadyProcessed.
func (l *Ledger) ApplyWebhookEvent(ctx context.Context, event *provider.WebhookEvent) error {
	if l == nil {
		return nil
	}
	if event == nil {
		return errors.New("webhook event is required")
	}

	order, err := l.findEventOrder(ctx, event)
	if err != nil {
		return err
	}

	change := ledgerChange{
		providerEventID: event.ID,
		paymentID:       event.PaymentID,
		failureReason:   event.FailureReason,
		payload:         string(event.Raw),
	}

	if order == nil {
		l.logger.WithFields(logrus.Fields{
			"event_id":          event.ID,
			"event_type":        event.Type,
			"provider_order_id": event.ProviderOrderID,
			"payment_id":        event.PaymentID,
		}).Info("Webhook event for unknown order")
		return l.recordEvent(ctx, nil, event.Type, nil, nil, change)
	}

	_, err = l.transition(ctx, order, event.Type, change)
	return err
}

// FindOrder returns the ledger row for a provider order id.
func (l *Ledger) FindOrder(ctx context.Context, providerOrderID string) (*entity.Order, error) {
	if l == nil {
		return nil, ErrLedgerUnavailable
	}
	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return nil, ErrMissingParameter
	}

	order, err := l.orders.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

type ledgerChange struct {
	providerEventID string
	paymentID       string
	failureReason   string
	payload         string
}

// transition applies eventType to order, persists it when the status moves
// and always records the event. It reports whether the status changed.
//
// The write is guarded by the status the decision was made on. When another
// writer moved the order first, the fresh row is reloaded into order and the
// decision is made again.
func (l *Ledger) transition(ctx context.Context, order *entity.Order, eventType string, change ledgerChange) (bool, error) {
	oldStatus := order.Status
	newStatus, moved := NextStatus(oldStatus, eventType)

	for attempt := 1; moved; attempt++ {
		next := l.applyChange(order, newStatus, eventType, change)
		err := l.orders.UpdateStatus(ctx, next, oldStatus)
		if err == nil {
			*order = *next
			break
		}
		if !errors.Is(err, repository.ErrOrderStatusChanged) {
			return false, err
		}
		if attempt >= maxTransitionAttempts {
			return false, err
		}

		fresh, err := l.orders.FindByProviderOrderID(ctx, order.ProviderOrderID)
		if err != nil {
			return false, err
		}
		if fresh == nil {
			return false, ErrOrderNotFound
		}
		l.logger.WithFields(logrus.Fields{
			"provider_order_id": order.ProviderOrderID,
			"expected_status":   oldStatus,
			"status":            fresh.Status,
			"event_type":        eventType,
		}).Warn("Order changed concurrently, re-evaluating")

		*order = *fresh
		oldStatus = order.Status
		newStatus, moved = NextStatus(oldStatus, eventType)
	}

	if !moved {
		l.logger.WithFields(logrus.Fields{
			"provider_order_id": order.ProviderOrderID,
			"status":            oldStatus,
			"event_type":        eventType,
		}).Info("Event does not move order")
	}

	var oldPtr, newPtr *string
	if moved {
		oldPtr, newPtr = &oldStatus, &newStatus
	}
	orderID := order.ID
	if err := l.recordEvent(ctx, &orderID, eventType, oldPtr, newPtr, change); err != nil {
		return moved, err
	}
	return moved, nil
}

// applyChange returns a copy of order moved to newStatus.
func (l *Ledger) applyChange(order *entity.Order, newStatus, eventType string, change ledgerChange) *entity.Order {
	next := *order
	next.Status = newStatus
	if change.paymentID != "" {
		paymentID := change.paymentID
		next.ProviderPaymentID = &paymentID
	}
	if change.providerEventID != "" {
		eventID := change.providerEventID
		next.LastEventID = &eventID
	}
	if newStatus == entity.OrderStatusFailed {
		reason := truncate(strings.TrimSpace(change.failureReason), maxFailureReasonLength)
		if reason == "" {
			reason = eventType
		}
		next.FailureReason = &reason
	} else {
		next.FailureReason = nil
	}
	next.UpdatedAt = l.now()
	return &next
}

func (l *Ledger) recordEvent(ctx context.Context, orderID *uint64, eventType string, oldStatus, newStatus *string, change ledgerChange) error {
	event := &entity.PaymentEvent{
		OrderID:           orderID,
		ProviderEventID:   optionalString(change.providerEventID),
		EventType:         eventType,
		OldStatus:         oldStatus,
		NewStatus:         newStatus,
		ProviderPaymentID: optionalString(change.paymentID),
		PayloadJSON:       optionalString(change.payload),
		CreatedAt:         l.now(),
	}
	if err := l.events.Create(ctx, event); err != nil {
		if errors.Is(err, repository.ErrEventAlreadyExists) {
			return ErrEventAlreadyProcessed
		}
		return err
	}
	return nil
}

func (l *Ledger) findEventOrder(ctx context.Context, event *provider.WebhookEvent) (*entity.Order, error) {
	if event.ProviderOrderID != "" {
		return l.orders.FindByProviderOrderID(ctx, event.ProviderOrderID)
	}
	if event.PaymentID != "" {
		return l.orders.FindByProviderPaymentID(ctx, event.PaymentID)
	}
	return nil, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// truncate cuts value to at most max bytes without splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
