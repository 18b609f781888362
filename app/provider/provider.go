package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

type CreateOrderInput struct {
	AmountPaise int64
	Currency    string
	Receipt     string

	// Offers is forwarded to the provider untouched.
	Offers json.RawMessage
	// Notes are attached to the order and shown on the Razorpay dashboard.
	Notes map[string]string
}

// Order is the provider's order object as returned by its API. Callers hand
// it back to clients verbatim; only a few fields are read locally.
type Order map[string]interface{}

func (o Order) ID() string {
	return o.stringField("id")
}

func (o Order) Status() string {
	return o.stringField("status")
}

func (o Order) Receipt() string {
	return o.stringField("receipt")
}

func (o Order) stringField(key string) string {
	if o == nil {
		return ""
	}
	switch v := o[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

type Gateway interface {
	CreateOrder(ctx context.Context, input *CreateOrderInput) (Order, error)
	FetchOrder(ctx context.Context, providerOrderID string) (Order, error)
}
