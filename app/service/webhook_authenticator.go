package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-razorpay/app/entity"
	"github.com/vibast-solutions/ms-go-razorpay/app/factory"
	"github.com/vibast-solutions/ms-go-razorpay/app/metrics"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
)

const (
	defaultReplayTTL = 24 * time.Hour

	// Width of webhook_deliveries.signature.
	maxSignatureLength = 128
)

type WebhookConfig struct {
	Secret    string
	ReplayTTL time.Duration
}

// EventDispatcher acts on a verified webhook event. Returning
// ErrEventAlreadyProcessed marks the delivery as a duplicate.
type EventDispatcher interface {
	ApplyWebhookEvent(ctx context.Context, event *provider.WebhookEvent) error
}

// ReplayGuard claims event ids so a redelivered event is dispatched once.
type ReplayGuard interface {
	Acquire(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type WebhookDeliveryRecorder interface {
	Create(ctx context.Context, delivery *entity.WebhookDelivery) error
}

type webhookRequest interface {
	GetBody() []byte
	GetSignature() string
	GetEventId() string
	GetRemoteIp() string
}

type WebhookResult struct {
	Event     *provider.WebhookEvent
	Duplicate bool
	Ignored   bool
}

// WebhookAuthenticator admits provider webhooks. The body is parsed only
// after its signature matches the webhook secret.
type WebhookAuthenticator struct {
	secret     string
	replayTTL  time.Duration
	dispatcher EventDispatcher
	replay     ReplayGuard
	deliveries WebhookDeliveryRecorder
	metrics    *metrics.Collectors
	logger     logrus.FieldLogger
}

// NewWebhookAuthenticator wires the authenticator. replay and deliveries may
// be nil.
func NewWebhookAuthenticator(
	cfg WebhookConfig,
	dispatcher EventDispatcher,
	replay ReplayGuard,
	deliveries WebhookDeliveryRecorder,
	m *metrics.Collectors,
) *WebhookAuthenticator {
	ttl := cfg.ReplayTTL
	if ttl <= 0 {
		ttl = defaultReplayTTL
	}
	return &WebhookAuthenticator{
		secret:     cfg.Secret,
		replayTTL:  ttl,
		dispatcher: dispatcher,
		replay:     replay,
		deliveries: deliveries,
		metrics:    m,
		logger:     factory.NewModuleLogger("webhook-authenticator"),
	}
}

func (s *WebhookAuthenticator) Authenticate(ctx context.Context, req webhookRequest) (*WebhookResult, error) {
	body := req.GetBody()
	signature := strings.TrimSpace(req.GetSignature())
	logger := s.logger.WithField("remote_ip", req.GetRemoteIp())

	if !provider.VerifyWebhookSignature(s.secret, body, signature) {
		logger.WithField("signature_present", signature != "").Warn("Webhook signature mismatch")
		s.metrics.Webhook("", metrics.ResultRejected)
		s.audit(ctx, req, nil, entity.WebhookDeliveryRejected, ErrSignatureMismatch)
		return nil, ErrSignatureMismatch
	}

	event, err := provider.ParseWebhookEvent(body)
	if err != nil {
		logger.WithError(err).Error("Verified webhook body could not be parsed")
		s.metrics.Webhook("", metrics.ResultInvalid)
		s.audit(ctx, req, nil, entity.WebhookDeliveryRejected, err)
		return nil, fmt.Errorf("%w: %v", ErrWebhookBodyUnparseable, err)
	}
	event.ID = provider.WebhookEventID(req.GetEventId(), body)
	logger = logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"payment_id": event.PaymentID,
	})

	if event.Type == "" {
		logger.Warn("Verified webhook has no event type, ignoring")
		s.metrics.Webhook("", metrics.ResultIgnored)
		s.audit(ctx, req, event, entity.WebhookDeliveryProcessed, nil)
		return &WebhookResult{Event: event, Ignored: true}, nil
	}

	claimed := false
	if s.replay != nil {
		acquired, err := s.replay.Acquire(ctx, event.ID, s.replayTTL)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Webhook replay guard unavailable")
		case !acquired:
			logger.Info("Duplicate webhook delivery ignored")
			s.metrics.Webhook(event.Type, metrics.ResultDuplicate)
			s.audit(ctx, req, event, entity.WebhookDeliveryDuplicate, nil)
			return &WebhookResult{Event: event, Duplicate: true}, nil
		default:
			claimed = true
		}
	}

	if err := s.dispatcher.ApplyWebhookEvent(ctx, event); err != nil {
		if errors.Is(err, ErrEventAlreadyProcessed) {
			logger.Info("Webhook event already processed")
			s.metrics.Webhook(event.Type, metrics.ResultDuplicate)
			s.audit(ctx, req, event, entity.WebhookDeliveryDuplicate, nil)
			return &WebhookResult{Event: event, Duplicate: true}, nil
		}

		if claimed {
			if releaseErr := s.replay.Release(ctx, event.ID); releaseErr != nil {
				logger.WithError(releaseErr).Warn("Failed to release webhook replay key")
			}
		}
		logger.WithError(err).Error("Webhook dispatch failed")
		s.metrics.Webhook(event.Type, metrics.ResultError)
		s.audit(ctx, req, event, entity.WebhookDeliveryFailed, err)
		return nil, err
	}

	logger.Info("Webhook processed")
	s.metrics.Webhook(event.Type, metrics.ResultSuccess)
	s.audit(ctx, req, event, entity.WebhookDeliveryProcessed, nil)
	return &WebhookResult{Event: event}, nil
}

func (s *WebhookAuthenticator) audit(ctx context.Context, req webhookRequest, event *provider.WebhookEvent, status int32, cause error) {
	if s.deliveries == nil {
		return
	}

	delivery := &entity.WebhookDelivery{
		Signature: truncate(strings.ToValidUTF8(strings.TrimSpace(req.GetSignature()), ""), maxSignatureLength),
		Payload:   string(req.GetBody()),
		RemoteIP:  req.GetRemoteIp(),
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if event != nil {
		delivery.EventID = optionalString(event.ID)
		delivery.EventType = optionalString(event.Type)
	}
	if cause != nil {
		msg := truncate(cause.Error(), maxFailureReasonLength)
		delivery.Error = &msg
	}

	if err := s.deliveries.Create(ctx, delivery); err != nil {
		s.logger.WithError(err).Warn("Failed to record webhook delivery")
	}
}

// LoggingDispatcher stands in for the ledger when no database is configured.
type LoggingDispatcher struct {
	logger logrus.FieldLogger
}

func NewLoggingDispatcher() *LoggingDispatcher {
	return &LoggingDispatcher{logger: factory.NewModuleLogger("webhook-events")}
}

func (d *LoggingDispatcher) ApplyWebhookEvent(_ context.Context, event *provider.WebhookEvent) error {
	entry := d.logger.WithFields(logrus.Fields{
		"event_id":          event.ID,
		"event_type":        event.Type,
		"payment_id":        event.PaymentID,
		"provider_order_id": event.ProviderOrderID,
	})
	switch event.Type {
	case provider.EventPaymentCaptured, provider.EventOrderPaid:
		entry.Info("Payment captured")
	case provider.EventPaymentFailed:
		entry.WithField("reason", event.FailureReason).Warn("Payment failed")
	default:
		entry.Info("Webhook event received")
	}
	return nil
}
