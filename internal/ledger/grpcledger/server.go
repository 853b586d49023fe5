package grpcledger

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jcmexdev/shoe-market/internal/ledger"
	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
)

// maxQueryLength bounds a single QueryBlocks response.
const maxQueryLength = 1000

// Backend is the ledger the server exposes.
type Backend interface {
	ledger.BlockSource
	Transfer(ctx context.Context, from, to domain.Principal, amount, memo uint64) (uint64, error)
}

type ledgerServer struct {
	backend Backend
}

func NewServer(backend Backend) LedgerServer {
	return &ledgerServer{backend: backend}
}

func (s *ledgerServer) QueryBlocks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start, err := uintField(req, "start")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "query blocks: %v", err)
	}
	length, err := uintField(req, "length")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "query blocks: %v", err)
	}
	if length > maxQueryLength {
		length = maxQueryLength
	}

	blocks, err := s.backend.QueryBlocks(ctx, start, length)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query blocks: %v", err)
	}

	vals := make([]*structpb.Value, 0, len(blocks))
	for _, b := range blocks {
		vals = append(vals, blockToValue(b))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"blocks": structpb.NewListValue(&structpb.ListValue{Values: vals}),
	}}, nil
}

func (s *ledgerServer) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	from := domain.Principal(stringField(req, "from"))
	to := domain.Principal(stringField(req, "to"))
	if from == "" || to == "" {
		return nil, status.Error(codes.InvalidArgument, "transfer: from and to are required")
	}
	amount, err := uintField(req, "amount")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "transfer: %v", err)
	}
	memo, err := uintField(req, "memo")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "transfer: %v", err)
	}

	idx, err := s.backend.Transfer(ctx, from, to, amount, memo)
	if err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "transfer: %v", err)
	}
	slog.InfoContext(ctx, "ledger transfer recorded", "block", idx, "memo", memo, "amount", amount)

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"block": uintValue(idx),
	}}, nil
}
