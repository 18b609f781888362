package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-razorpay/app/factory"
	"github.com/vibast-solutions/ms-go-razorpay/app/mapper"
	"github.com/vibast-solutions/ms-go-razorpay/app/service"
	"github.com/vibast-solutions/ms-go-razorpay/app/types"
)

const (
	RootMessage = "Razorpay payments gateway running"

	errOrderCreationFailed = "order_creation_failed"
	errInvalidSignature    = "Invalid signature"
)

type PaymentController struct {
	orderCreator *service.OrderCreator
	verifier     *service.PaymentVerifier
	webhooks     *service.WebhookAuthenticator
	ledger       *service.Ledger
	logger       logrus.FieldLogger
}

func NewPaymentController(
	orderCreator *service.OrderCreator,
	verifier *service.PaymentVerifier,
	webhooks *service.WebhookAuthenticator,
	ledger *service.Ledger,
) *PaymentController {
	return &PaymentController{
		orderCreator: orderCreator,
		verifier:     verifier,
		webhooks:     webhooks,
		ledger:       ledger,
		logger:       factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Root(ctx echo.Context) error {
	return ctx.String(http.StatusOK, RootMessage)
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.MsgInvalidBody)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.orderCreator.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		var creationErr *service.OrderCreationError
		switch {
		case errors.Is(err, service.ErrMissingParameter):
			return c.writeError(ctx, http.StatusBadRequest, types.MsgAmountRequired)
		case errors.Is(err, service.ErrInvalidParameter):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.As(err, &creationErr):
			return ctx.JSON(http.StatusInternalServerError, &types.OrderCreationErrorResponse{
				Error:   errOrderCreationFailed,
				Details: creationErr.Details,
			})
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create order failed")
			return ctx.JSON(http.StatusInternalServerError, &types.OrderCreationErrorResponse{
				Error:   errOrderCreationFailed,
				Details: err.Error(),
			})
		}
	}

	return ctx.JSON(http.StatusOK, order)
}

func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, types.MsgInvalidBody)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.verifier.Verify(ctx.Request().Context(), req); err != nil {
		switch {
		case errors.Is(err, service.ErrMissingParameter):
			return c.writeError(ctx, http.StatusBadRequest, types.MsgMissingParameters)
		case errors.Is(err, service.ErrSignatureMismatch):
			factory.LoggerWithContext(c.logger, ctx).WithFields(logrus.Fields{
				"order_id":   req.GetRazorpayOrderId(),
				"payment_id": req.GetRazorpayPaymentId(),
				"remote_ip":  ctx.RealIP(),
			}).Warn("Payment signature mismatch")
			return ctx.JSON(http.StatusBadRequest, &types.VerifyPaymentResponse{OK: false, Error: errInvalidSignature})
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Verify payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.VerifyPaymentResponse{OK: true})
}

// HandleWebhook answers in plain text; the provider only looks at the status.
func (c *PaymentController) HandleWebhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return ctx.String(http.StatusBadRequest, "invalid payload")
	}

	if _, err := c.webhooks.Authenticate(ctx.Request().Context(), req); err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureMismatch):
			return ctx.String(http.StatusBadRequest, "invalid signature")
		case errors.Is(err, service.ErrWebhookBodyUnparseable):
			return ctx.String(http.StatusBadRequest, "invalid payload")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Webhook processing failed")
			return ctx.String(http.StatusInternalServerError, "processing failed")
		}
	}

	return ctx.String(http.StatusOK, "ok")
}

func (c *PaymentController) GetOrder(ctx echo.Context) error {
	req := types.NewGetOrderRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.ledger.FindOrder(ctx.Request().Context(), req.GetOrderId())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrLedgerUnavailable):
			return c.writeError(ctx, http.StatusServiceUnavailable, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get order failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, mapper.OrderToResponse(order))
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
