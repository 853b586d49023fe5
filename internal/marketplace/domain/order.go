package domain

import "time"

type OrderStatus string

const (
	StatusPaymentPending OrderStatus = "PAYMENT_PENDING"
	StatusCompleted      OrderStatus = "COMPLETED"
)

// Order is one reservation-to-completion lifecycle for a single item.
//
// CorrelationID keys the pending order and is the memo the buyer must attach
// to the ledger transfer. PaidAtBlock is nil iff Status is StatusPaymentPending.
type Order struct {
	ItemID        string      `json:"item_id"`
	Price         uint64      `json:"price"`
	Status        OrderStatus `json:"status"`
	Seller        Principal   `json:"seller"`
	PaidAtBlock   *uint64     `json:"paid_at_block"`
	CorrelationID uint64      `json:"correlation_id"`
	Buyer         Principal   `json:"buyer,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (o Order) IsPending() bool { return o.Status == StatusPaymentPending }

// Complete returns a copy of o marked as paid at block. o itself is unchanged.
func (o Order) Complete(block uint64) Order {
	paid := block
	o.Status = StatusCompleted
	o.PaidAtBlock = &paid
	return o
}

// ExpiresAt is the instant the reservation window elapses.
func (o Order) ExpiresAt(window time.Duration) time.Time {
	return o.CreatedAt.Add(window)
}
