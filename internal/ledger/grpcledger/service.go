// Package grpcledger exposes a ledger over gRPC as service ledger.v1.Ledger.
//
// Messages are google.protobuf.Struct values; 64-bit integers travel as
// decimal strings because Struct numbers are doubles. The service descriptor
// is written by hand so the package needs no generated code.
package grpcledger

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName       = "ledger.v1.Ledger"
	queryBlocksMethod = "/" + serviceName + "/QueryBlocks"
	transferMethod    = "/" + serviceName + "/Transfer"
)

// LedgerServer is the server API for ledger.v1.Ledger.
type LedgerServer interface {
	QueryBlocks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterLedgerServer registers srv on s.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueryBlocks", Handler: queryBlocksHandler},
		{MethodName: "Transfer", Handler: transferHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

func queryBlocksHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).QueryBlocks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryBlocksMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerServer).QueryBlocks(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func transferHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).Transfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transferMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerServer).Transfer(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
