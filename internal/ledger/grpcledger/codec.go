package grpcledger

import (
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jcmexdev/shoe-market/internal/ledger"
)

func uintField(s *structpb.Struct, name string) (uint64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("missing field %q", name)
	}
	n, err := strconv.ParseUint(v.GetStringValue(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return n, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func uintValue(n uint64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatUint(n, 10))
}

func blockToValue(b ledger.Block) *structpb.Value {
	fields := map[string]*structpb.Value{
		"index":     uintValue(b.Index),
		"memo":      uintValue(b.Memo),
		"timestamp": structpb.NewStringValue(b.Timestamp.UTC().Format(time.RFC3339Nano)),
	}
	if b.Transfer != nil {
		fields["transfer"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"from":   structpb.NewStringValue(b.Transfer.From.String()),
			"to":     structpb.NewStringValue(b.Transfer.To.String()),
			"amount": uintValue(b.Transfer.Amount),
		}})
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func blockFromValue(v *structpb.Value) (ledger.Block, error) {
	s := v.GetStructValue()
	if s == nil {
		return ledger.Block{}, fmt.Errorf("block is not an object")
	}

	var b ledger.Block
	var err error
	if b.Index, err = uintField(s, "index"); err != nil {
		return b, err
	}
	if b.Memo, err = uintField(s, "memo"); err != nil {
		return b, err
	}
	if ts := stringField(s, "timestamp"); ts != "" {
		if b.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return b, fmt.Errorf("field %q: %w", "timestamp", err)
		}
	}

	tv, ok := s.GetFields()["transfer"]
	if !ok {
		return b, nil
	}
	ts := tv.GetStructValue()
	if ts == nil {
		return b, fmt.Errorf("transfer is not an object")
	}
	var tr ledger.Transfer
	if tr.From, err = ledger.ParseAddress(stringField(ts, "from")); err != nil {
		return b, err
	}
	if tr.To, err = ledger.ParseAddress(stringField(ts, "to")); err != nil {
		return b, err
	}
	if tr.Amount, err = uintField(ts, "amount"); err != nil {
		return b, err
	}
	b.Transfer = &tr
	return b, nil
}
