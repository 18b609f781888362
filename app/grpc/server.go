package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-razorpay/app/mapper"
	"github.com/vibast-solutions/ms-go-razorpay/app/service"
	"github.com/vibast-solutions/ms-go-razorpay/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type Server struct {
	orderCreator *service.OrderCreator
	verifier     *service.PaymentVerifier
	ledger       *service.Ledger
}

var _ PaymentsGatewayServer = (*Server)(nil)

func NewServer(orderCreator *service.OrderCreator, verifier *service.PaymentVerifier, ledger *service.Ledger) *Server {
	return &Server{orderCreator: orderCreator, verifier: verifier, ledger: ledger}
}

func (s *Server) Health(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(&types.HealthResponse{Status: "ok"})
}

func (s *Server) CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	l := loggerWithContext(ctx)
	raw, err := mapper.StructToJSON(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, types.MsgInvalidBody)
	}
	req, err := types.NewCreateOrderRequestFromJSON(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, types.MsgInvalidBody)
	}
	if err := req.Validate(); err != nil {
		l.WithError(err).Debug("Create order validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, err := s.orderCreator.CreateOrder(ctx, req)
	if err != nil {
		var creationErr *service.OrderCreationError
		switch {
		case errors.Is(err, service.ErrMissingParameter):
			return nil, status.Error(codes.InvalidArgument, types.MsgAmountRequired)
		case errors.Is(err, service.ErrInvalidParameter):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.As(err, &creationErr):
			return nil, status.Error(codes.Unavailable, creationErr.Details)
		default:
			l.WithError(err).Error("Create order failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	return toStruct(order)
}

func (s *Server) VerifyPayment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := mapper.StructToJSON(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, types.MsgInvalidBody)
	}
	req, err := types.NewVerifyPaymentRequestFromJSON(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, types.MsgInvalidBody)
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.verifier.Verify(ctx, req); err != nil {
		switch {
		case errors.Is(err, service.ErrMissingParameter):
			return nil, status.Error(codes.InvalidArgument, types.MsgMissingParameters)
		case errors.Is(err, service.ErrSignatureMismatch):
			loggerWithContext(ctx).WithField("order_id", req.GetRazorpayOrderId()).Warn("Payment signature mismatch")
			return toStruct(&types.VerifyPaymentResponse{OK: false, Error: "Invalid signature"})
		default:
			loggerWithContext(ctx).WithError(err).Error("Verify payment failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	return toStruct(&types.VerifyPaymentResponse{OK: true})
}

func (s *Server) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	orderID := ""
	if v, ok := in.GetFields()["order_id"]; ok {
		orderID = strings.TrimSpace(v.GetStringValue())
	}
	req := &types.GetOrderRequest{OrderId: orderID}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, err := s.ledger.FindOrder(ctx, req.GetOrderId())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return nil, status.Error(codes.NotFound, "order not found")
		case errors.Is(err, service.ErrLedgerUnavailable):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			loggerWithContext(ctx).WithError(err).Error("Get order failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	return toStruct(mapper.OrderToResponse(order))
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	out, err := mapper.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}
