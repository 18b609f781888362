package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-razorpay/app/factory"
	"github.com/vibast-solutions/ms-go-razorpay/app/metrics"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
)

const (
	DefaultCurrency  = "INR"
	MaxReceiptLength = 40
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type createOrderRequest interface {
	GetAmountInPaise() int64
	GetCurrency() string
	GetReceipt() string
	GetOffers() json.RawMessage
}

// OrderCreator turns a checkout amount into a Razorpay order. It holds only
// the provider client and never sees the webhook secret.
type OrderCreator struct {
	gateway provider.Gateway
	ledger  *Ledger
	metrics *metrics.Collectors
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewOrderCreator(gateway provider.Gateway, ledger *Ledger, m *metrics.Collectors) *OrderCreator {
	return &OrderCreator{
		gateway: gateway,
		ledger:  ledger,
		metrics: m,
		logger:  factory.NewModuleLogger("order-creator"),
		now:     time.Now,
	}
}

func (s *OrderCreator) CreateOrder(ctx context.Context, req createOrderRequest) (provider.Order, error) {
	amount := req.GetAmountInPaise()
	if amount <= 0 {
		s.metrics.OrderCreated(metrics.ResultInvalid)
		return nil, fmt.Errorf("%w: amountInPaise", ErrMissingParameter)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.GetCurrency()))
	if currency == "" {
		currency = DefaultCurrency
	}
	if !currencyPattern.MatchString(currency) {
		s.metrics.OrderCreated(metrics.ResultInvalid)
		return nil, fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrInvalidParameter)
	}

	receipt := strings.TrimSpace(req.GetReceipt())
	if receipt == "" {
		receipt = s.newReceipt()
	}
	if len(receipt) > MaxReceiptLength {
		s.metrics.OrderCreated(metrics.ResultInvalid)
		return nil, fmt.Errorf("%w: receipt must be at most %d characters", ErrInvalidParameter, MaxReceiptLength)
	}

	started := time.Now()
	order, err := s.gateway.CreateOrder(ctx, &provider.CreateOrderInput{
		AmountPaise: amount,
		Currency:    currency,
		Receipt:     receipt,
		Offers:      req.GetOffers(),
		Notes:       map[string]string{"receipt": receipt},
	})
	if err != nil {
		s.metrics.ProviderRequest("orders.create", metrics.ResultFailure, time.Since(started))
		s.metrics.OrderCreated(metrics.ResultFailure)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"amount_paise": amount,
			"currency":     currency,
			"receipt":      receipt,
		}).Error("Razorpay order creation failed")
		return nil, &OrderCreationError{Details: providerDetails(err), Err: err}
	}
	s.metrics.ProviderRequest("orders.create", metrics.ResultSuccess, time.Since(started))
	s.metrics.OrderCreated(metrics.ResultSuccess)

	if err := s.ledger.RecordOrderCreated(ctx, order.ID(), receipt, amount, currency); err != nil {
		s.logger.WithError(err).WithField("provider_order_id", order.ID()).Error("Failed to record created order")
	}

	return order, nil
}

// newReceipt builds rcpt_<unix millis>_<8 hex>, well inside the provider's
// 40 character limit.
func (s *OrderCreator) newReceipt() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("rcpt_%d_%s", s.now().UnixMilli(), suffix)
}

func providerDetails(err error) string {
	var providerErr *provider.ProviderError
	if errors.As(err, &providerErr) && strings.TrimSpace(providerErr.Message) != "" {
		return providerErr.Message
	}
	return err.Error()
}
