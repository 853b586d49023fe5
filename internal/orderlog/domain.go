// Package orderlog defines the durable audit trail of order lifecycle
// transitions.
//
// The reservation and completed-order stores only hold the current state of
// an order; once a reservation expires it leaves no trace there. The order log
// keeps every transition so an operator can answer "what happened to memo X"
// and jump from a row to the distributed trace through trace_id.
package orderlog

import "time"

// Event is the lifecycle transition recorded by an Entry.
type Event string

const (
	EventCreated            Event = "CREATED"
	EventVerificationFailed Event = "VERIFICATION_FAILED"
	EventCompleted          Event = "COMPLETED"
	EventExpired            Event = "EXPIRED"
	EventFault              Event = "FAULT"
)

// Entry is a single row in the order_log table.
type Entry struct {
	// CorrelationID is the order's memo, the join key with the pending store
	// and with ledger blocks.
	CorrelationID uint64

	ItemID string

	Event Event

	// Principal is the caller that caused the transition; empty for expiry.
	Principal string

	// Detail is the JSON-serialised order at the time of the transition, or
	// an error message for VERIFICATION_FAILED and FAULT.
	Detail string

	// TraceID and SpanID come from the OpenTelemetry span active when the
	// entry was written. Empty when no span was active.
	TraceID string
	SpanID  string

	RecordedAt time.Time
}
