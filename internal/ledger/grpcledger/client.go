package grpcledger

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jcmexdev/shoe-market/internal/ledger"
	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
)

// Client is a ledger.BlockSource backed by a remote ledger.v1.Ledger.
type Client struct {
	conn grpc.ClientConnInterface
}

var _ ledger.BlockSource = (*Client)(nil)

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) QueryBlocks(ctx context.Context, start, length uint64) ([]ledger.Block, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"start":  uintValue(start),
		"length": uintValue(length),
	}}
	res := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, queryBlocksMethod, req, res); err != nil {
		return nil, fmt.Errorf("grpc QueryBlocks: %w", err)
	}

	vals := res.GetFields()["blocks"].GetListValue().GetValues()
	out := make([]ledger.Block, 0, len(vals))
	for _, v := range vals {
		b, err := blockFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("grpc QueryBlocks: decode block: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Transfer asks the remote ledger to move amount between default accounts.
func (c *Client) Transfer(ctx context.Context, from, to domain.Principal, amount, memo uint64) (uint64, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"from":   structpb.NewStringValue(string(from)),
		"to":     structpb.NewStringValue(string(to)),
		"amount": uintValue(amount),
		"memo":   uintValue(memo),
	}}
	res := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, transferMethod, req, res); err != nil {
		return 0, fmt.Errorf("grpc Transfer: %w", err)
	}
	idx, err := uintField(res, "block")
	if err != nil {
		return 0, fmt.Errorf("grpc Transfer: %w", err)
	}
	return idx, nil
}
