package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	MsgAmountRequired = "amountInPaise required"
	MsgAmountInvalid  = "amountInPaise must be a positive integer"
	MsgInvalidBody    = "invalid request body"
)

// CreateOrderRequest is the checkout page's order request. The amount stays
// raw until Validate so absent, null and zero can be told apart from
// malformed values.
type CreateOrderRequest struct {
	RawAmountInPaise json.RawMessage `json:"amountInPaise"`
	Currency         string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Receipt          string          `json:"receipt" validate:"omitempty,max=40"`
	Offers           json.RawMessage `json:"offers,omitempty"`

	AmountInPaise int64 `json:"-"`

	decodeErr error
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	raw, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}
	return NewCreateOrderRequestFromJSON(raw)
}

// NewCreateOrderRequestFromJSON fails only when raw is not a JSON object.
// A sibling field of the wrong type is kept as a decode error and reported
// by Validate after the amount.
func NewCreateOrderRequestFromJSON(raw []byte) (*CreateOrderRequest, error) {
	body := &CreateOrderRequest{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return body, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, body); err != nil {
		body.decodeErr = err
	}
	body.RawAmountInPaise = fields["amountInPaise"]
	body.normalize()
	return body, nil
}

func (r *CreateOrderRequest) normalize() {
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.Receipt = strings.TrimSpace(r.Receipt)
}

// Validate checks the amount first so a missing amount wins over any other
// problem in the request.
func (r *CreateOrderRequest) Validate() error {
	amount, err := parseAmount(r.RawAmountInPaise)
	if err != nil {
		return err
	}
	r.AmountInPaise = amount

	if r.decodeErr != nil {
		return errors.New(MsgInvalidBody)
	}
	return validateStruct(r)
}

func (r *CreateOrderRequest) GetAmountInPaise() int64 {
	return r.AmountInPaise
}

func (r *CreateOrderRequest) GetCurrency() string {
	return r.Currency
}

func (r *CreateOrderRequest) GetReceipt() string {
	return r.Receipt
}

// GetOffers returns the caller's offers untouched, or nil when absent.
func (r *CreateOrderRequest) GetOffers() json.RawMessage {
	trimmed := bytes.TrimSpace(r.Offers)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return r.Offers
}

func parseAmount(raw json.RawMessage) (int64, error) {
	value := strings.TrimSpace(string(raw))
	switch value {
	case "", "null", "false", `""`:
		return 0, errors.New(MsgAmountRequired)
	}
	if strings.HasPrefix(value, `"`) {
		unquoted, err := strconv.Unquote(value)
		if err != nil {
			return 0, errors.New(MsgAmountInvalid)
		}
		value = strings.TrimSpace(unquoted)
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil && f == 0 {
		return 0, errors.New(MsgAmountRequired)
	}

	if amount, err := strconv.ParseInt(value, 10, 64); err == nil {
		if amount <= 0 {
			return 0, errors.New(MsgAmountInvalid)
		}
		return amount, nil
	}

	// 10000.0 and 1e4 are the same whole amount.
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, errors.New(MsgAmountInvalid)
	}
	return int64(f), nil
}

type VerifyPaymentRequest struct {
	RazorpayOrderId   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentId string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

const MsgMissingParameters = "missing parameters"

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	var body VerifyPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.normalize()
	return &body, nil
}

func NewVerifyPaymentRequestFromJSON(raw []byte) (*VerifyPaymentRequest, error) {
	var body VerifyPaymentRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body.normalize()
	return &body, nil
}

func (r *VerifyPaymentRequest) normalize() {
	r.RazorpayOrderId = strings.TrimSpace(r.RazorpayOrderId)
	r.RazorpayPaymentId = strings.TrimSpace(r.RazorpayPaymentId)
	r.RazorpaySignature = strings.TrimSpace(r.RazorpaySignature)
}

func (r *VerifyPaymentRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.New(MsgMissingParameters)
	}
	return nil
}

func (r *VerifyPaymentRequest) GetRazorpayOrderId() string {
	return r.RazorpayOrderId
}

func (r *VerifyPaymentRequest) GetRazorpayPaymentId() string {
	return r.RazorpayPaymentId
}

func (r *VerifyPaymentRequest) GetRazorpaySignature() string {
	return r.RazorpaySignature
}

type GetOrderRequest struct {
	OrderId string
}

func NewGetOrderRequestFromContext(ctx echo.Context) *GetOrderRequest {
	return &GetOrderRequest{OrderId: strings.TrimSpace(ctx.Param("orderId"))}
}

func (r *GetOrderRequest) Validate() error {
	if r.OrderId == "" {
		return errors.New("order id is required")
	}
	return nil
}

func (r *GetOrderRequest) GetOrderId() string {
	return r.OrderId
}
