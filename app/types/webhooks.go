package types

import (
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"
)

// WebhookRequest carries the webhook body exactly as received.
type WebhookRequest struct {
	Body      []byte
	Signature string
	EventId   string
	RemoteIp  string
}

// NewWebhookRequestFromContext reads the raw body. It never decodes JSON:
// the signature covers these exact bytes.
func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}
	return &WebhookRequest{
		Body:      body,
		Signature: strings.TrimSpace(ctx.Request().Header.Get(HeaderRazorpaySignature)),
		EventId:   strings.TrimSpace(ctx.Request().Header.Get(HeaderRazorpayEventID)),
		RemoteIp:  ctx.RealIP(),
	}, nil
}

func (r *WebhookRequest) GetBody() []byte {
	return r.Body
}

func (r *WebhookRequest) GetSignature() string {
	return r.Signature
}

func (r *WebhookRequest) GetEventId() string {
	return r.EventId
}

func (r *WebhookRequest) GetRemoteIp() string {
	return r.RemoteIp
}
