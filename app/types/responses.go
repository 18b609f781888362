package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type OrderCreationErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

type VerifyPaymentResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// OrderResponse is the ledger's view of an order.
type OrderResponse struct {
	OrderID       string  `json:"order_id"`
	Receipt       string  `json:"receipt"`
	AmountInPaise int64   `json:"amount_in_paise"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	PaymentID     *string `json:"payment_id,omitempty"`
	LastEventID   *string `json:"last_event_id,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}
