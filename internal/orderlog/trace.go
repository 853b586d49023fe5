package orderlog

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

// ExtractTraceInfo reads the active span from ctx. Both fields are empty when
// ctx carries no valid span (e.g. in unit tests or timer callbacks).
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEntry builds an Entry with trace info taken from ctx. detail is encoded
// as JSON unless it is already a string.
//
//	entry := orderlog.NewEntry(ctx, order.CorrelationID, order.ItemID, orderlog.EventCreated, buyer, order)
//	_ = repo.Save(ctx, entry)
func NewEntry(ctx context.Context, correlationID uint64, itemID string, event Event, principal string, detail any) *Entry {
	ti := ExtractTraceInfo(ctx)

	var d string
	switch v := detail.(type) {
	case nil:
	case string:
		d = v
	case error:
		d = v.Error()
	default:
		if b, err := json.Marshal(v); err == nil {
			d = string(b)
		}
	}

	return &Entry{
		CorrelationID: correlationID,
		ItemID:        itemID,
		Event:         event,
		Principal:     principal,
		Detail:        d,
		TraceID:       ti.TraceID,
		SpanID:        ti.SpanID,
		RecordedAt:    time.Now().UTC(),
	}
}
