package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vibast-solutions/ms-go-razorpay/app/entity"
	"github.com/vibast-solutions/ms-go-razorpay/app/metrics"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
	"github.com/vibast-solutions/ms-go-razorpay/app/repository"
)

const testWebhookSecret = "whsec_test"

var capturedBody = []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_123"}}}}`)

func signedWebhook(body []byte) webhookReq {
	return webhookReq{body: body, signature: provider.Sign(testWebhookSecret, body)}
}

func newReplayGuard(t *testing.T) (*miniredis.Miniredis, ReplayGuard) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, repository.NewWebhookReplayStore(client)
}

func TestAuthenticateDispatchesVerifiedEvent(t *testing.T) {
	dispatcher := &spyDispatcher{}
	deliveries := &memoryDeliveryRepo{}
	m := metrics.New()
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, nil, deliveries, m)

	result, err := auth.Authenticate(context.Background(), signedWebhook(capturedBody))
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.Equal(t, provider.EventPaymentCaptured, result.Event.Type)
	require.Equal(t, "pay_123", result.Event.PaymentID)
	require.Equal(t, provider.WebhookEventID("", capturedBody), result.Event.ID)

	require.Equal(t, 1, dispatcher.count())
	require.Equal(t, []int32{entity.WebhookDeliveryProcessed}, deliveries.statuses())
	require.Equal(t, float64(1), testutil.ToFloat64(m.Webhooks.WithLabelValues(provider.EventPaymentCaptured, metrics.ResultSuccess)))
}

func TestAuthenticateRejectsTamperedBodyBeforeParsing(t *testing.T) {
	dispatcher := &spyDispatcher{}
	deliveries := &memoryDeliveryRepo{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, nil, deliveries, nil)

	req := signedWebhook(capturedBody)
	req.body = []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_999"}}}}`)

	_, err := auth.Authenticate(context.Background(), req)
	require.ErrorIs(t, err, ErrSignatureMismatch)
	require.Equal(t, 0, dispatcher.count())
	require.Equal(t, []int32{entity.WebhookDeliveryRejected}, deliveries.statuses())
	require.Nil(t, deliveries.deliveries[0].EventType)
}

func TestAuthenticateRejectsGarbageWithBadSignatureAsSignatureError(t *testing.T) {
	dispatcher := &spyDispatcher{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, nil, nil, nil)

	_, err := auth.Authenticate(context.Background(), webhookReq{body: []byte("not json"), signature: "00"})
	require.ErrorIs(t, err, ErrSignatureMismatch)
	require.Equal(t, 0, dispatcher.count())
}

func TestAuthenticateRejectsKeySecretSignature(t *testing.T) {
	dispatcher := &spyDispatcher{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, nil, nil, nil)

	_, err := auth.Authenticate(context.Background(), webhookReq{
		body:      capturedBody,
		signature: provider.Sign(testKeySecret, capturedBody),
	})
	require.ErrorIs(t, err, ErrSignatureMismatch)
	require.Equal(t, 0, dispatcher.count())
}

func TestAuthenticateEmptySecretRejectsEverything(t *testing.T) {
	dispatcher := &spyDispatcher{}
	auth := NewWebhookAuthenticator(WebhookConfig{}, dispatcher, nil, nil, nil)

	_, err := auth.Authenticate(context.Background(), webhookReq{
		body:      capturedBody,
		signature: provider.Sign("", capturedBody),
	})
	require.ErrorIs(t, err, ErrSignatureMismatch)
	require.Equal(t, 0, dispatcher.count())
}

func TestAuthenticateUnparseableVerifiedBody(t *testing.T) {
	dispatcher := &spyDispatcher{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, nil, nil, nil)

	_, err := auth.Authenticate(context.Background(), signedWebhook([]byte("not json")))
	require.ErrorIs(t, err, ErrWebhookBodyUnparseable)
	require.Equal(t, 0, dispatcher.count())
}

func TestAuthenticateIgnoresVerifiedBodyWithoutEvent(t *testing.T) {
	for _, body := range []string{`{}`, `{"entity":"event","payload":{}}`, `[1,2]`} {
		dispatcher := &spyDispatcher{}
		deliveries := &memoryDeliveryRepo{}
		m := metrics.New()
		auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, nil, deliveries, m)

		result, err := auth.Authenticate(context.Background(), signedWebhook([]byte(body)))
		require.NoError(t, err, body)
		require.True(t, result.Ignored, body)
		require.Equal(t, 0, dispatcher.count(), body)
		require.Equal(t, []int32{entity.WebhookDeliveryProcessed}, deliveries.statuses(), body)
		require.Equal(t, float64(1), testutil.ToFloat64(m.Webhooks.WithLabelValues("", metrics.ResultIgnored)), body)
	}
}

func TestAuthenticateDispatchesMistypedEntityFields(t *testing.T) {
	dispatcher := &spyDispatcher{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, nil, nil, nil)
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":"10000","status":7}}}}`)

	result, err := auth.Authenticate(context.Background(), signedWebhook(body))
	require.NoError(t, err)
	require.Equal(t, 1, dispatcher.count())
	require.Equal(t, "order_1", result.Event.ProviderOrderID)
	require.Equal(t, int64(10000), result.Event.AmountPaise)
}

func TestAuthenticateAuditTruncatesSignature(t *testing.T) {
	deliveries := &memoryDeliveryRepo{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, &spyDispatcher{}, nil, deliveries, nil)

	_, err := auth.Authenticate(context.Background(), webhookReq{body: capturedBody, signature: strings.Repeat("é", 300)})
	require.ErrorIs(t, err, ErrSignatureMismatch)
	require.Len(t, deliveries.deliveries, 1)

	signature := deliveries.deliveries[0].Signature
	require.LessOrEqual(t, len(signature), maxSignatureLength)
	require.True(t, utf8.ValidString(signature))
}

func TestAuthenticateUsesEventIDHeader(t *testing.T) {
	dispatcher := &spyDispatcher{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, nil, nil, nil)

	req := signedWebhook(capturedBody)
	req.eventID = "evt_Header1"
	result, err := auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "evt_Header1", result.Event.ID)
}

func TestAuthenticateReplayGuardSuppressesRedelivery(t *testing.T) {
	_, guard := newReplayGuard(t)
	dispatcher := &spyDispatcher{}
	deliveries := &memoryDeliveryRepo{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret, ReplayTTL: time.Hour}, dispatcher, guard, deliveries, nil)

	first, err := auth.Authenticate(context.Background(), signedWebhook(capturedBody))
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := auth.Authenticate(context.Background(), signedWebhook(capturedBody))
	require.NoError(t, err)
	require.True(t, second.Duplicate)

	require.Equal(t, 1, dispatcher.count())
	require.Equal(t, []int32{entity.WebhookDeliveryProcessed, entity.WebhookDeliveryDuplicate}, deliveries.statuses())
}

func TestAuthenticateConcurrentRedeliveryDispatchesOnce(t *testing.T) {
	_, guard := newReplayGuard(t)
	dispatcher := &spyDispatcher{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, guard, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := auth.Authenticate(context.Background(), signedWebhook(capturedBody))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, dispatcher.count())
}

func TestAuthenticateDispatchFailureReleasesReplayKey(t *testing.T) {
	mr, guard := newReplayGuard(t)
	dispatcher := &spyDispatcher{result: errors.New("database unavailable")}
	deliveries := &memoryDeliveryRepo{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, guard, deliveries, nil)

	req := signedWebhook(capturedBody)
	req.eventID = "evt_retry"
	_, err := auth.Authenticate(context.Background(), req)
	require.EqualError(t, err, "database unavailable")
	require.False(t, mr.Exists("rzp:webhook:evt_retry"))

	dispatcher.result = nil
	result, err := auth.Authenticate(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.Equal(t, 2, dispatcher.count())
	require.Equal(t, []int32{entity.WebhookDeliveryFailed, entity.WebhookDeliveryProcessed}, deliveries.statuses())
}

func TestAuthenticateReplayGuardOutageStillDispatches(t *testing.T) {
	mr, guard := newReplayGuard(t)
	mr.Close()
	dispatcher := &spyDispatcher{}
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, dispatcher, guard, nil, nil)

	_, err := auth.Authenticate(context.Background(), signedWebhook(capturedBody))
	require.NoError(t, err)
	require.Equal(t, 1, dispatcher.count())
}

func TestAuthenticateLedgerDeduplicatesWithoutReplayGuard(t *testing.T) {
	ledger, orders, _ := newTestLedger()
	orders.seed(&entity.Order{ProviderOrderID: "order_1", Status: entity.OrderStatusAwaitingPayment})
	auth := NewWebhookAuthenticator(WebhookConfig{Secret: testWebhookSecret}, ledger, nil, nil, nil)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)
	first, err := auth.Authenticate(context.Background(), signedWebhook(body))
	require.NoError(t, err)
	require.False(t, first.Duplicate)
	require.Equal(t, entity.OrderStatusPaid, orders.get("order_1").Status)

	second, err := auth.Authenticate(context.Background(), signedWebhook(body))
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, entity.OrderStatusPaid, orders.get("order_1").Status)
}

func TestLoggingDispatcherAcceptsEvents(t *testing.T) {
	d := NewLoggingDispatcher()
	for _, eventType := range []string{provider.EventPaymentCaptured, provider.EventPaymentFailed, provider.EventRefundCreated} {
		require.NoError(t, d.ApplyWebhookEvent(context.Background(), &provider.WebhookEvent{ID: "evt", Type: eventType}))
	}
}
