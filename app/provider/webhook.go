package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventOrderPaid         = "order.paid"
	EventRefundCreated     = "refund.created"
	EventRefundProcessed   = "refund.processed"
	EventRefundFailed      = "refund.failed"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// WebhookEvent is the subset of a verified Razorpay webhook that drives order
// state. Raw keeps the exact bytes that were signed.
type WebhookEvent struct {
	ID   string
	Type string

	PaymentID       string
	ProviderOrderID string
	RefundID        string
	AmountPaise     int64
	PaymentStatus   string
	FailureReason   string

	Raw []byte
}

// ParseWebhookEvent decodes a webhook body. It must only be called on bodies
// whose signature has already been verified. Only a body that is not JSON is
// malformed: a missing event yields an empty Type, and entity fields of an
// unexpected type are coerced where possible and skipped otherwise.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	root, _ := doc.(map[string]interface{})

	event := &WebhookEvent{
		Type: stringField(root, "event"),
		Raw:  body,
	}
	if payment := entityOf(root, "payment"); payment != nil {
		event.PaymentID = stringField(payment, "id")
		event.ProviderOrderID = stringField(payment, "order_id")
		event.AmountPaise = amountField(payment, "amount")
		event.PaymentStatus = stringField(payment, "status")
		event.FailureReason = stringField(payment, "error_description")
	}
	if order := entityOf(root, "order"); order != nil && event.ProviderOrderID == "" {
		event.ProviderOrderID = stringField(order, "id")
	}
	if refund := entityOf(root, "refund"); refund != nil {
		event.RefundID = stringField(refund, "id")
		if event.PaymentID == "" {
			event.PaymentID = stringField(refund, "payment_id")
		}
	}

	return event, nil
}

// entityOf returns payload.<name>.entity, or nil when any level is missing or
// not an object.
func entityOf(root map[string]interface{}, name string) map[string]interface{} {
	payload, _ := root["payload"].(map[string]interface{})
	wrapper, _ := payload[name].(map[string]interface{})
	entity, _ := wrapper["entity"].(map[string]interface{})
	return entity
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func amountField(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < math.MaxInt64 {
			return int64(v)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// WebhookEventID prefers the provider-assigned id header and falls back to a
// digest of the signed body.
func WebhookEventID(headerValue string, body []byte) string {
	if id := strings.TrimSpace(headerValue); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
