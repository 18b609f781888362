package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

const defaultRazorpayTimeout = 10 * time.Second

type RazorpayConfig struct {
	KeyID       string
	KeySecret   string
	HTTPTimeout time.Duration
}

// ProviderError carries the provider's own description of a failed call so
// it can be surfaced to operators.
type ProviderError struct {
	Operation string
	Message   string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("razorpay %s failed: %s", e.Operation, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// orderAPI is the slice of the SDK's order resource used here.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayGateway struct {
	orders  orderAPI
	timeout time.Duration
}

func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return newRazorpayGateway(client.Order, cfg.HTTPTimeout)
}

func newRazorpayGateway(orders orderAPI, timeout time.Duration) *RazorpayGateway {
	if timeout <= 0 {
		timeout = defaultRazorpayTimeout
	}
	return &RazorpayGateway{orders: orders, timeout: timeout}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, input *CreateOrderInput) (Order, error) {
	if input == nil {
		return nil, errors.New("create order input is required")
	}
	payload := buildOrderPayload(input)
	return g.call(ctx, "orders.create", func() (map[string]interface{}, error) {
		return g.orders.Create(payload, nil)
	})
}

func (g *RazorpayGateway) FetchOrder(ctx context.Context, providerOrderID string) (Order, error) {
	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return nil, errors.New("provider order id is required")
	}
	return g.call(ctx, "orders.fetch", func() (map[string]interface{}, error) {
		return g.orders.Fetch(providerOrderID, nil, nil)
	})
}

// call runs a blocking SDK request under the gateway timeout. The SDK has no
// context support, so an abandoned request finishes in the background and
// its result is dropped.
func (g *RazorpayGateway) call(ctx context.Context, operation string, fn func() (map[string]interface{}, error)) (Order, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &ProviderError{Operation: operation, Message: ctx.Err().Error(), Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return nil, &ProviderError{Operation: operation, Message: errorMessage(res.err), Err: res.err}
		}
		if msg := errorDescription(res.body); msg != "" {
			return nil, &ProviderError{Operation: operation, Message: msg}
		}
		return Order(res.body), nil
	}
}

func buildOrderPayload(input *CreateOrderInput) map[string]interface{} {
	payload := map[string]interface{}{
		"amount":          input.AmountPaise,
		"currency":        input.Currency,
		"receipt":         input.Receipt,
		"payment_capture": 1,
	}
	if len(input.Offers) > 0 {
		payload["offers"] = input.Offers
	}
	if len(input.Notes) > 0 {
		payload["notes"] = input.Notes
	}
	return payload
}

func errorMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown provider error"
	}
	return msg
}

// errorDescription extracts {"error":{"description":...}} bodies that some
// SDK versions hand back without an error value.
func errorDescription(body map[string]interface{}) string {
	raw, ok := body["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"description", "message", "code"} {
		if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
