package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "razorpay.v1.PaymentsGateway"

// PaymentsGatewayServer is the internal gRPC surface. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the HTTP API.
type PaymentsGatewayServer interface {
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var PaymentsGatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PaymentsGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Health",
			Handler:    unaryHandler("Health", PaymentsGatewayServer.Health),
		},
		{
			MethodName: "CreateOrder",
			Handler:    unaryHandler("CreateOrder", PaymentsGatewayServer.CreateOrder),
		},
		{
			MethodName: "VerifyPayment",
			Handler:    unaryHandler("VerifyPayment", PaymentsGatewayServer.VerifyPayment),
		},
		{
			MethodName: "GetOrder",
			Handler:    unaryHandler("GetOrder", PaymentsGatewayServer.GetOrder),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "razorpay/v1/payments_gateway.proto",
}

func RegisterPaymentsGatewayServer(registrar grpc.ServiceRegistrar, srv PaymentsGatewayServer) {
	registrar.RegisterService(&PaymentsGatewayServiceDesc, srv)
}

// FullMethod returns the gRPC method path for a PaymentsGateway method.
func FullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unaryHandler[In proto.Message, Out proto.Message](
	method string,
	call func(PaymentsGatewayServer, context.Context, In) (Out, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newMessage[In]()
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(PaymentsGatewayServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(server, ctx, req.(In))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newMessage[M proto.Message]() M {
	var zero M
	return zero.ProtoReflect().New().Interface().(M)
}
