package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
)

type Verifier struct {
	source BlockSource
	tracer trace.Tracer
}

func NewVerifier(source BlockSource) *Verifier {
	return &Verifier{
		source: source,
		tracer: otel.Tracer("github.com/jcmexdev/shoe-market/internal/ledger"),
	}
}

// Verify reports whether block holds a transfer of exactly amount from the
// caller's default account to the receiver's default account carrying memo.
// A mismatch or an empty block range is (false, nil); only a ledger failure
// returns an error.
func (v *Verifier) Verify(ctx context.Context, caller, receiver domain.Principal, amount, block, memo uint64) (bool, error) {
	ctx, span := v.tracer.Start(ctx, "ledger.verify")
	defer span.End()
	span.SetAttributes(
		attribute.String("ledger.block", strconv.FormatUint(block, 10)),
		attribute.String("ledger.amount", strconv.FormatUint(amount, 10)),
		attribute.String("ledger.memo", strconv.FormatUint(memo, 10)),
	)

	blocks, err := v.source.QueryBlocks(ctx, block, 1)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query blocks failed")
		return false, fmt.Errorf("ledger: query block %d: %w", block, err)
	}
	if len(blocks) == 0 {
		slog.InfoContext(ctx, "no ledger block in range", "block", block)
		span.SetAttributes(attribute.Bool("ledger.verified", false))
		return false, nil
	}

	from := DefaultAddress(caller)
	to := DefaultAddress(receiver)
	for _, b := range blocks {
		if matches(b, memo, from, to, amount) {
			span.SetAttributes(attribute.Bool("ledger.verified", true))
			return true, nil
		}
	}
	span.SetAttributes(attribute.Bool("ledger.verified", false))
	return false, nil
}

func matches(b Block, memo uint64, from, to Address, amount uint64) bool {
	if b.Transfer == nil {
		return false
	}
	return b.Memo == memo &&
		b.Transfer.From == from &&
		b.Transfer.To == to &&
		b.Transfer.Amount == amount
}
