package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
)

// ReservationStore is the pending-order table keyed by correlation id.
type ReservationStore interface {
	Insert(ctx context.Context, correlationID uint64, order domain.Order) error
	Remove(ctx context.Context, correlationID uint64) (domain.Order, bool, error)
}

// CompletedStore is the completed-order table keyed by the completing principal.
type CompletedStore interface {
	Insert(ctx context.Context, caller domain.Principal, order domain.Order) error
}

// ItemStore applies sold-count changes as atomic per-item updates.
type ItemStore interface {
	RecordSale(ctx context.Context, id string) (domain.Item, error)
	RevertSale(ctx context.Context, id string) (domain.Item, error)
}

// Completion is the state shared by the steps of one order completion.
// Seller, Price and ItemID are the buyer's claim and must match the claimed
// reservation. Result is set once the saga succeeds.
type Completion struct {
	Caller        domain.Principal
	ItemID        string
	Seller        domain.Principal
	Price         uint64
	Block         uint64
	CorrelationID uint64

	Result domain.Order

	pending domain.Order
}

type CompletionDeps struct {
	Reservations ReservationStore
	Items        ItemStore
	Completed    CompletedStore
	// Rearm is called after a claimed reservation is put back, so that it
	// still expires. May be nil.
	Rearm func(order domain.Order)
}

// NewCompletionSteps returns the ordered steps that move a verified order
// from the reservation store to the completed store.
func NewCompletionSteps(c *Completion, deps CompletionDeps) []Step {
	return []Step{
		&ClaimReservationStep{c: c, store: deps.Reservations, rearm: deps.Rearm},
		&RecordSaleStep{c: c, items: deps.Items},
		&PersistOrderStep{c: c, store: deps.Completed},
	}
}

// --- ClaimReservationStep ---

// ClaimReservationStep atomically takes the pending order out of the store.
// Losing the race to expiry or to a concurrent completion yields ErrOrderNotFound.
// A reservation whose item, seller or price differs from the claim is put
// back and the step fails with ErrVerificationFailed.
type ClaimReservationStep struct {
	c     *Completion
	store ReservationStore
	rearm func(domain.Order)
}

func (s *ClaimReservationStep) Name() string { return "Claim_Reservation_Step" }

func (s *ClaimReservationStep) Execute(ctx context.Context) error {
	order, ok, err := s.store.Remove(ctx, s.c.CorrelationID)
	if err != nil {
		return fmt.Errorf("failed to claim reservation: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: correlation_id=%d", domain.ErrOrderNotFound, s.c.CorrelationID)
	}
	s.c.pending = order

	if order.ItemID != s.c.ItemID || order.Seller != s.c.Seller || order.Price != s.c.Price {
		if err := s.Compensate(ctx); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInconsistentState, err)
		}
		return fmt.Errorf("%w: order %d is for item %s from %s at %d",
			domain.ErrVerificationFailed, s.c.CorrelationID, order.ItemID, order.Seller, order.Price)
	}
	return nil
}

func (s *ClaimReservationStep) Compensate(ctx context.Context) error {
	if err := s.store.Insert(ctx, s.c.CorrelationID, s.c.pending); err != nil {
		return fmt.Errorf("failed to restore reservation: %w", err)
	}
	if s.rearm != nil {
		s.rearm(s.c.pending)
	}
	return nil
}

// --- RecordSaleStep ---

type RecordSaleStep struct {
	c     *Completion
	items ItemStore
}

func (s *RecordSaleStep) Name() string { return "Record_Sale_Step" }

func (s *RecordSaleStep) Execute(ctx context.Context) error {
	_, err := s.items.RecordSale(ctx, s.c.pending.ItemID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: item %s vanished while order %d was pending",
			domain.ErrInconsistentState, s.c.pending.ItemID, s.c.CorrelationID)
	}
	if err != nil {
		return fmt.Errorf("failed to record sale: %w", err)
	}
	return nil
}

func (s *RecordSaleStep) Compensate(ctx context.Context) error {
	if _, err := s.items.RevertSale(ctx, s.c.pending.ItemID); err != nil {
		return fmt.Errorf("failed to revert sale: %w", err)
	}
	return nil
}

// --- PersistOrderStep ---

// PersistOrderStep stores the completed order under the caller, replacing
// whatever the caller completed before. It must stay the last step, so it
// is never compensated.
type PersistOrderStep struct {
	c     *Completion
	store CompletedStore
}

func (s *PersistOrderStep) Name() string { return "Persist_Order_Step" }

func (s *PersistOrderStep) Execute(ctx context.Context) error {
	done := s.c.pending.Complete(s.c.Block)
	done.Buyer = s.c.Caller
	if err := s.store.Insert(ctx, s.c.Caller, done); err != nil {
		return fmt.Errorf("failed to persist completed order: %w", err)
	}
	s.c.Result = done
	return nil
}

func (s *PersistOrderStep) Compensate(context.Context) error { return nil }
