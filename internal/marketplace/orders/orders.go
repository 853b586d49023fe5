// Package orders reconciles off-ledger reservations with on-ledger payments.
//
// An order is created PAYMENT_PENDING in the reservation store and carries a
// correlation id the buyer must use as the transfer memo. It ends either
// COMPLETED, once a matching ledger transfer is shown, or discarded by the
// expiry scheduler when the window elapses first. The reservation store's
// atomic remove is the only arbiter between those two outcomes.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/shoe-market/internal/coordinator"
	"github.com/jcmexdev/shoe-market/internal/marketplace/correlation"
	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
	"github.com/jcmexdev/shoe-market/internal/marketplace/expiry"
	"github.com/jcmexdev/shoe-market/internal/orderlog"
	"github.com/jcmexdev/shoe-market/internal/pkg/clock"
	"github.com/jcmexdev/shoe-market/internal/pkg/events"
	"github.com/jcmexdev/shoe-market/internal/storage"
)

const (
	// DefaultWindow is how long a reservation waits for payment.
	DefaultWindow = 120 * time.Second
	// recordTimeout bounds the order log append and the event publish.
	recordTimeout = 2 * time.Second
)

// ItemProvider reads listed items and records their sales.
type ItemProvider interface {
	GetItem(ctx context.Context, id string) (domain.Item, error)
	coordinator.ItemStore
}

// PaymentVerifier checks a ledger block for a transfer from caller to
// receiver. A missing or mismatching transfer is (false, nil).
type PaymentVerifier interface {
	Verify(ctx context.Context, caller, receiver domain.Principal, amount, block, memo uint64) (bool, error)
}

// Deps wires a Service. Items, Pending, Completed, Verifier and Clock are
// required; OrderLog and Events may be nil.
type Deps struct {
	Items     ItemProvider
	Pending   storage.KV
	Completed storage.KV
	Verifier  PaymentVerifier
	Clock     clock.Clock
	Window    time.Duration
	OrderLog  orderlog.Repository
	Events    events.Publisher
}

// CompleteOrderInput is what the buyer claims to have paid.
type CompleteOrderInput struct {
	Seller        domain.Principal
	ItemID        string
	Price         uint64
	Block         uint64
	CorrelationID uint64
}

type Service struct {
	items     ItemProvider
	pending   *storage.Table[uint64, domain.Order]
	completed *storage.Table[domain.Principal, domain.Order]
	verifier  PaymentVerifier
	clock     clock.Clock
	window    time.Duration
	scheduler *expiry.Scheduler
	orderLog  orderlog.Repository
	events    events.Publisher
	tracer    trace.Tracer
}

func NewService(d Deps) *Service {
	if d.Items == nil || d.Pending == nil || d.Completed == nil || d.Verifier == nil {
		panic("orders: items, stores and verifier are required")
	}
	if d.Window <= 0 {
		d.Window = DefaultWindow
	}

	s := &Service{
		items:     d.Items,
		pending:   storage.NewTable[uint64, domain.Order](d.Pending, correlation.Key),
		completed: storage.NewTable[domain.Principal, domain.Order](d.Completed, domain.Principal.String),
		verifier:  d.Verifier,
		clock:     d.Clock,
		window:    d.Window,
		orderLog:  d.OrderLog,
		events:    d.Events,
		tracer:    otel.Tracer("github.com/jcmexdev/shoe-market/internal/marketplace/orders"),
	}
	s.scheduler = expiry.NewScheduler(d.Clock, s.pending, s.onExpired)
	return s
}

// Window returns the reservation window in effect.
func (s *Service) Window() time.Duration { return s.window }

// CreateOrder reserves itemID for requester until the window elapses.
func (s *Service) CreateOrder(ctx context.Context, requester domain.Principal, itemID string) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.create", trace.WithAttributes(
		attribute.String("order.item_id", itemID),
	))
	defer span.End()

	if requester == "" {
		return domain.Order{}, domain.ErrUnauthenticated
	}

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, fmt.Errorf("cannot create the order: %w", err)
	}

	now := s.clock.Now()
	order := domain.Order{
		ItemID:        item.ID,
		Price:         item.Price,
		Status:        domain.StatusPaymentPending,
		Seller:        item.Seller,
		CorrelationID: correlation.Generate(item.ID, requester, now),
		Buyer:         requester,
		CreatedAt:     now,
	}
	span.SetAttributes(attribute.String("order.correlation_id", correlation.Key(order.CorrelationID)))

	if err := s.pending.Insert(ctx, order.CorrelationID, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation insert failed")
		return domain.Order{}, fmt.Errorf("failed to reserve item %s: %w", item.ID, err)
	}
	s.scheduler.Arm(order.CorrelationID, s.window)

	slog.InfoContext(ctx, "order reserved",
		"correlation_id", order.CorrelationID,
		"item_id", order.ItemID,
		"price", order.Price,
		"expires_at", order.ExpiresAt(s.window),
	)
	s.record(ctx, order, orderlog.EventCreated, requester, order)
	return order, nil
}

// CompleteOrder verifies the claimed payment and, if the reservation is still
// live, moves it to the completed store under caller.
//
// A verification miss leaves the reservation untouched so the buyer can retry
// with a better block reference. A missing reservation is ErrOrderNotFound
// even when the payment verifies.
func (s *Service) CompleteOrder(ctx context.Context, caller domain.Principal, in CompleteOrderInput) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.complete", trace.WithAttributes(
		attribute.String("order.item_id", in.ItemID),
		attribute.String("order.correlation_id", correlation.Key(in.CorrelationID)),
		attribute.String("ledger.block", strconv.FormatUint(in.Block, 10)),
	))
	defer span.End()

	if caller == "" {
		return domain.Order{}, domain.ErrUnauthenticated
	}

	ok, err := s.verifier.Verify(ctx, caller, in.Seller, in.Price, in.Block, in.CorrelationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger unavailable")
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, err)
	}
	if !ok {
		err := fmt.Errorf("%w: no transfer with memo=%d at block %d", domain.ErrVerificationFailed, in.CorrelationID, in.Block)
		s.record(ctx, domain.Order{ItemID: in.ItemID, CorrelationID: in.CorrelationID},
			orderlog.EventVerificationFailed, caller, err)
		return domain.Order{}, err
	}

	c := &coordinator.Completion{
		Caller:        caller,
		ItemID:        in.ItemID,
		Seller:        in.Seller,
		Price:         in.Price,
		Block:         in.Block,
		CorrelationID: in.CorrelationID,
	}
	steps := coordinator.NewCompletionSteps(c, coordinator.CompletionDeps{
		Reservations: s.pending,
		Items:        s.items,
		Completed:    s.completed,
		Rearm:        s.rearm,
	})

	if err := coordinator.NewOrchestrator(correlation.Key(in.CorrelationID), steps).Start(ctx); err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, domain.ErrInconsistentState):
			span.SetStatus(codes.Error, "inconsistent state")
			slog.ErrorContext(ctx, "CRITICAL: order completion hit inconsistent state",
				"correlation_id", in.CorrelationID, "item_id", in.ItemID, "error", err)
			s.record(ctx, domain.Order{ItemID: in.ItemID, CorrelationID: in.CorrelationID},
				orderlog.EventFault, caller, err)
		case errors.Is(err, domain.ErrVerificationFailed):
			s.record(ctx, domain.Order{ItemID: in.ItemID, CorrelationID: in.CorrelationID},
				orderlog.EventVerificationFailed, caller, err)
		}
		return domain.Order{}, fmt.Errorf("cannot complete the purchase: %w", err)
	}

	slog.InfoContext(ctx, "order completed",
		"correlation_id", in.CorrelationID, "item_id", in.ItemID, "block", in.Block, "buyer", caller)
	s.record(ctx, c.Result, orderlog.EventCompleted, caller, c.Result)
	return c.Result, nil
}

// VerifyPayment is a read-only passthrough to the verifier.
func (s *Service) VerifyPayment(ctx context.Context, caller, receiver domain.Principal, amount, block, memo uint64) (bool, error) {
	ok, err := s.verifier.Verify(ctx, caller, receiver, amount, block, memo)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, err)
	}
	return ok, nil
}

func (s *Service) PendingOrders(ctx context.Context) ([]domain.Order, error) {
	return s.pending.Values(ctx)
}

func (s *Service) CompletedOrders(ctx context.Context) ([]domain.Order, error) {
	return s.completed.Values(ctx)
}

// Restore re-arms expiry for every pending order after a restart. Timers do
// not survive the process; reservations do. Orders already past their window
// expire on the next tick.
func (s *Service) Restore(ctx context.Context) (int, error) {
	pending, err := s.pending.Values(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending orders: %w", err)
	}
	for _, o := range pending {
		s.rearm(o)
	}
	if len(pending) > 0 {
		slog.InfoContext(ctx, "re-armed reservation timers", "count", len(pending))
	}
	return len(pending), nil
}

func (s *Service) rearm(o domain.Order) {
	s.scheduler.Arm(o.CorrelationID, o.ExpiresAt(s.window).Sub(s.clock.Now()))
}

func (s *Service) onExpired(ctx context.Context, o domain.Order) {
	s.record(ctx, o, orderlog.EventExpired, "", o)
}

// record appends to the order log and publishes the lifecycle event. Neither
// failure affects the caller, and neither outlives recordTimeout.
func (s *Service) record(ctx context.Context, o domain.Order, event orderlog.Event, principal domain.Principal, detail any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if s.orderLog != nil {
		entry := orderlog.NewEntry(ctx, o.CorrelationID, o.ItemID, event, principal.String(), detail)
		if err := s.orderLog.Save(ctx, entry); err != nil {
			slog.WarnContext(ctx, "failed to append order log", "correlation_id", o.CorrelationID, "event", event, "error", err)
		}
	}
	if s.events != nil {
		eventType := "order." + strings.ToLower(string(event))
		if err := s.events.Publish(ctx, correlation.Key(o.CorrelationID), eventType, o); err != nil {
			slog.WarnContext(ctx, "failed to publish order event", "correlation_id", o.CorrelationID, "event", eventType, "error", err)
		}
	}
}
