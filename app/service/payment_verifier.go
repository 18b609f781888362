package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-razorpay/app/factory"
	"github.com/vibast-solutions/ms-go-razorpay/app/metrics"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
)

type verifyPaymentRequest interface {
	GetRazorpayOrderId() string
	GetRazorpayPaymentId() string
	GetRazorpaySignature() string
}

// PaymentVerifier checks the signature checkout hands back to the browser
// after a payment attempt. It is keyed with the API key secret only.
type PaymentVerifier struct {
	keySecret string
	ledger    *Ledger
	metrics   *metrics.Collectors
	logger    logrus.FieldLogger
}

func NewPaymentVerifier(keySecret string, ledger *Ledger, m *metrics.Collectors) *PaymentVerifier {
	return &PaymentVerifier{
		keySecret: keySecret,
		ledger:    ledger,
		metrics:   m,
		logger:    factory.NewModuleLogger("payment-verifier"),
	}
}

// Verify returns nil when the signature matches, ErrMissingParameter when a
// field is empty and ErrSignatureMismatch otherwise.
func (s *PaymentVerifier) Verify(ctx context.Context, req verifyPaymentRequest) error {
	orderID := strings.TrimSpace(req.GetRazorpayOrderId())
	paymentID := strings.TrimSpace(req.GetRazorpayPaymentId())
	signature := strings.TrimSpace(req.GetRazorpaySignature())
	if orderID == "" || paymentID == "" || signature == "" {
		s.metrics.PaymentVerified(metrics.ResultInvalid)
		return ErrMissingParameter
	}

	if !provider.VerifyPaymentSignature(s.keySecret, orderID, paymentID, signature) {
		s.metrics.PaymentVerified(metrics.ResultRejected)
		return ErrSignatureMismatch
	}
	s.metrics.PaymentVerified(metrics.ResultSuccess)

	if err := s.ledger.RecordPayment(ctx, orderID, paymentID); err != nil {
		entry := s.logger.WithFields(logrus.Fields{
			"provider_order_id": orderID,
			"payment_id":        paymentID,
		})
		if errors.Is(err, ErrOrderNotFound) {
			entry.Warn("Verified payment for order missing from ledger")
		} else {
			entry.WithError(err).Error("Failed to record verified payment")
		}
	}

	return nil
}
