package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-razorpay/app/factory"
	"github.com/vibast-solutions/ms-go-razorpay/app/metrics"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
	"github.com/vibast-solutions/ms-go-razorpay/config"
)

const defaultBatchSize = int32(100)

// providerOrderPaid is the order status Razorpay reports once a payment on it
// has been captured.
const providerOrderPaid = "paid"

type JobService struct {
	ledger      *Ledger
	gateway     provider.Gateway
	paymentsCfg config.PaymentsConfig
	metrics     *metrics.Collectors
	logger      logrus.FieldLogger
}

func NewJobService(ledger *Ledger, gateway provider.Gateway, paymentsCfg config.PaymentsConfig, m *metrics.Collectors) *JobService {
	return &JobService{
		ledger:      ledger,
		gateway:     gateway,
		paymentsCfg: paymentsCfg,
		metrics:     m,
		logger:      factory.NewModuleLogger("payment-jobs"),
	}
}

// RunReconcileBatch asks the provider about open orders that have not heard
// from a webhook in a while and marks the paid ones.
func (s *JobService) RunReconcileBatch(ctx context.Context) error {
	if s.ledger == nil {
		return ErrLedgerUnavailable
	}

	before := s.ledger.now().Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.ledger.orders.ListForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	reconciled := 0
	for _, order := range items {
		if order == nil || order.ProviderOrderID == "" {
			continue
		}

		started := time.Now()
		remote, err := s.gateway.FetchOrder(ctx, order.ProviderOrderID)
		if err != nil {
			s.metrics.ProviderRequest("orders.fetch", metrics.ResultFailure, time.Since(started))
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		s.metrics.ProviderRequest("orders.fetch", metrics.ResultSuccess, time.Since(started))

		if remote.Status() != providerOrderPaid {
			continue
		}

		moved, err := s.ledger.transition(ctx, order, EventOrderReconciled, ledgerChange{})
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if moved {
			reconciled++
		}
	}

	s.logger.WithFields(logrus.Fields{"checked": len(items), "reconciled": reconciled}).Debug("Reconcile batch finished")
	return firstErr
}

// RunExpirePendingBatch fails open orders older than the pending timeout.
func (s *JobService) RunExpirePendingBatch(ctx context.Context) error {
	if s.ledger == nil {
		return ErrLedgerUnavailable
	}

	cutoff := s.ledger.now().Add(-s.paymentsCfg.PendingTimeout)
	items, err := s.ledger.orders.ListExpiredPending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range items {
		if order == nil {
			continue
		}
		if _, err := s.ledger.transition(ctx, order, EventOrderExpired, ledgerChange{failureReason: "payment window expired"}); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *JobService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize <= 0 {
		return defaultBatchSize
	}
	return s.paymentsCfg.JobBatchSize
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
