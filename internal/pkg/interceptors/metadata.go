package interceptors

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/jcmexdev/shoe-market/internal/pkg/interceptors/constants"
)

// TraceServerInterceptor lifts the request id and caller principal from
// incoming gRPC metadata into typed context values.
func TraceServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		requestID := firstIncoming(ctx, constants.HeaderXRequestId)
		principal := firstIncoming(ctx, constants.HeaderXPrincipal)

		newCtx := context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
		newCtx = context.WithValue(newCtx, constants.ContextKeyPrincipal, principal)

		slog.DebugContext(newCtx, "grpc call", "method", info.FullMethod, "request_id", requestID, "principal", principal)

		return handler(newCtx, req)
	}
}

// PropagateClientInterceptor copies the request id and principal stored in
// ctx onto outgoing gRPC metadata.
func PropagateClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(ContextWithPropagatedIDs(ctx), method, req, reply, cc, opts...)
	}
}

func ContextWithPropagatedIDs(ctx context.Context) context.Context {
	if id := GetRequestID(ctx); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, constants.HeaderXRequestId, id)
	}
	if p := GetPrincipal(ctx); p != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, constants.HeaderXPrincipal, p)
	}
	return ctx
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	return id
}

func GetPrincipal(ctx context.Context) string {
	p, _ := ctx.Value(constants.ContextKeyPrincipal).(string)
	return p
}

func firstIncoming(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
