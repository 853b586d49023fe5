// Package expiry discards reservations whose payment window elapsed.
//
// Timers are fire-and-forget. A reservation that completes before its timer
// fires is already gone from the store, so the later Remove finds nothing and
// the callback is a no-op.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
	"github.com/jcmexdev/shoe-market/internal/pkg/clock"
)

const removeTimeout = 5 * time.Second

// Remover is the slice of the reservation store the scheduler needs.
type Remover interface {
	Remove(ctx context.Context, correlationID uint64) (domain.Order, bool, error)
}

// ExpiredFunc observes an order that was discarded unpaid.
type ExpiredFunc func(ctx context.Context, order domain.Order)

type Scheduler struct {
	clock     clock.Clock
	store     Remover
	onExpired ExpiredFunc
}

// NewScheduler panics on a nil clock or store: a scheduler that cannot arm
// timers is a wiring bug, not a request error. onExpired may be nil.
func NewScheduler(clk clock.Clock, store Remover, onExpired ExpiredFunc) *Scheduler {
	if clk == nil {
		panic("expiry: nil clock")
	}
	if store == nil {
		panic("expiry: nil reservation store")
	}
	return &Scheduler{clock: clk, store: store, onExpired: onExpired}
}

// Arm schedules removal of correlationID after d. A non-positive d fires on
// the next clock tick.
func (s *Scheduler) Arm(correlationID uint64, d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.clock.AfterFunc(d, func() { s.expire(correlationID) })
}

func (s *Scheduler) expire(correlationID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	order, removed, err := s.store.Remove(ctx, correlationID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to discard expired reservation",
			"correlation_id", correlationID, "error", err)
		return
	}
	if !removed {
		return
	}

	slog.InfoContext(ctx, "reservation expired unpaid",
		"correlation_id", correlationID, "item_id", order.ItemID, "price", order.Price)
	if s.onExpired != nil {
		s.onExpired(ctx, order)
	}
}
