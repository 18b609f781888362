package service

import "errors"

var (
	ErrMissingParameter       = errors.New("missing parameter")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrOrderCreationFailed    = errors.New("order creation failed")
	ErrSignatureMismatch      = errors.New("signature mismatch")
	ErrWebhookBodyUnparseable = errors.New("webhook body unparseable")
	ErrOrderNotFound          = errors.New("order not found")
	ErrEventAlreadyProcessed  = errors.New("event already processed")
	ErrLedgerUnavailable      = errors.New("payment ledger is not configured")
)

// OrderCreationError keeps the provider's explanation next to the sentinel so
// callers can report it.
type OrderCreationError struct {
	Details string
	Err     error
}

func (e *OrderCreationError) Error() string {
	return ErrOrderCreationFailed.Error() + ": " + e.Details
}

func (e *OrderCreationError) Unwrap() error {
	return e.Err
}

func (e *OrderCreationError) Is(target error) bool {
	return target == ErrOrderCreationFailed
}
