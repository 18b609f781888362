package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeOrderAPI struct {
	createFn func(data map[string]interface{}) (map[string]interface{}, error)
	fetchFn  func(orderID string) (map[string]interface{}, error)
}

func (f *fakeOrderAPI) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return f.createFn(data)
}

func (f *fakeOrderAPI) Fetch(orderID string, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return f.fetchFn(orderID)
}

func TestCreateOrderBuildsProviderPayload(t *testing.T) {
	var captured map[string]interface{}
	api := &fakeOrderAPI{createFn: func(data map[string]interface{}) (map[string]interface{}, error) {
		captured = data
		return map[string]interface{}{"id": "order_1", "amount": float64(10000), "status": "created"}, nil
	}}
	gw := newRazorpayGateway(api, time.Second)

	offers := json.RawMessage(`["offer_JTUADI4ZWBGWur"]`)
	order, err := gw.CreateOrder(context.Background(), &CreateOrderInput{
		AmountPaise: 10000,
		Currency:    "INR",
		Receipt:     "rcpt_1",
		Offers:      offers,
	})
	require.NoError(t, err)
	require.Equal(t, "order_1", order.ID())
	require.Equal(t, "created", order.Status())

	require.Equal(t, int64(10000), captured["amount"])
	require.Equal(t, "INR", captured["currency"])
	require.Equal(t, "rcpt_1", captured["receipt"])
	require.Equal(t, 1, captured["payment_capture"])
	require.Equal(t, offers, captured["offers"])
	_, hasNotes := captured["notes"]
	require.False(t, hasNotes)

	encoded, err := json.Marshal(captured)
	require.NoError(t, err)
	require.Contains(t, string(encoded), `"offers":["offer_JTUADI4ZWBGWur"]`)
}

func TestCreateOrderForwardsNotes(t *testing.T) {
	var captured map[string]interface{}
	api := &fakeOrderAPI{createFn: func(data map[string]interface{}) (map[string]interface{}, error) {
		captured = data
		return map[string]interface{}{"id": "order_1"}, nil
	}}

	_, err := newRazorpayGateway(api, time.Second).CreateOrder(context.Background(), &CreateOrderInput{
		AmountPaise: 1,
		Currency:    "INR",
		Receipt:     "rcpt_1",
		Notes:       map[string]string{"receipt": "rcpt_1"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"receipt": "rcpt_1"}, captured["notes"])
}

func TestCreateOrderOmitsOffersWhenAbsent(t *testing.T) {
	var captured map[string]interface{}
	api := &fakeOrderAPI{createFn: func(data map[string]interface{}) (map[string]interface{}, error) {
		captured = data
		return map[string]interface{}{"id": "order_1"}, nil
	}}

	_, err := newRazorpayGateway(api, time.Second).CreateOrder(context.Background(), &CreateOrderInput{AmountPaise: 1, Currency: "INR", Receipt: "r"})
	require.NoError(t, err)
	_, hasOffers := captured["offers"]
	require.False(t, hasOffers)
}

func TestCreateOrderWrapsProviderError(t *testing.T) {
	api := &fakeOrderAPI{createFn: func(map[string]interface{}) (map[string]interface{}, error) {
		return nil, errors.New("Authentication failed")
	}}

	_, err := newRazorpayGateway(api, time.Second).CreateOrder(context.Background(), &CreateOrderInput{AmountPaise: 1, Currency: "INR", Receipt: "r"})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "Authentication failed", providerErr.Message)
	require.Equal(t, "orders.create", providerErr.Operation)
}

func TestCreateOrderTreatsErrorBodyAsFailure(t *testing.T) {
	api := &fakeOrderAPI{createFn: func(map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"error": map[string]interface{}{"code": "BAD_REQUEST_ERROR", "description": "The amount must be atleast INR 1.00"}}, nil
	}}

	_, err := newRazorpayGateway(api, time.Second).CreateOrder(context.Background(), &CreateOrderInput{AmountPaise: 1, Currency: "INR", Receipt: "r"})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "The amount must be atleast INR 1.00", providerErr.Message)
}

func TestCreateOrderTimesOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	api := &fakeOrderAPI{createFn: func(map[string]interface{}) (map[string]interface{}, error) {
		<-release
		return map[string]interface{}{"id": "late"}, nil
	}}

	start := time.Now()
	_, err := newRazorpayGateway(api, 20*time.Millisecond).CreateOrder(context.Background(), &CreateOrderInput{AmountPaise: 1, Currency: "INR", Receipt: "r"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestFetchOrderRequiresID(t *testing.T) {
	_, err := newRazorpayGateway(&fakeOrderAPI{}, time.Second).FetchOrder(context.Background(), "  ")
	require.Error(t, err)
}

func TestFetchOrderReturnsProviderOrder(t *testing.T) {
	api := &fakeOrderAPI{fetchFn: func(orderID string) (map[string]interface{}, error) {
		return map[string]interface{}{"id": orderID, "status": "paid"}, nil
	}}

	order, err := newRazorpayGateway(api, time.Second).FetchOrder(context.Background(), "order_7")
	require.NoError(t, err)
	require.Equal(t, "order_7", order.ID())
	require.Equal(t, "paid", order.Status())
}
