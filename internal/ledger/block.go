// Package ledger is the payment verification oracle. It never trusts the
// caller's claim about a transfer: it fetches the referenced block from a
// BlockSource and compares it field by field.
package ledger

import (
	"context"
	"time"
)

// Transfer is the only block operation the marketplace inspects.
type Transfer struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Amount uint64  `json:"amount"`
}

type Block struct {
	Index     uint64    `json:"index"`
	Memo      uint64    `json:"memo"`
	Transfer  *Transfer `json:"transfer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BlockSource reads a contiguous range of the ledger. An out-of-range start
// yields an empty slice, not an error; errors mean the ledger could not be
// reached.
type BlockSource interface {
	QueryBlocks(ctx context.Context, start, length uint64) ([]Block, error)
}
