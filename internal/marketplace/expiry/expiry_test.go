package expiry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/shoe-market/internal/marketplace/correlation"
	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
	"github.com/jcmexdev/shoe-market/internal/pkg/clock"
	"github.com/jcmexdev/shoe-market/internal/storage"
	"github.com/jcmexdev/shoe-market/internal/storage/memory"
)

func newPending(t *testing.T) *storage.Table[uint64, domain.Order] {
	t.Helper()
	return storage.NewTable[uint64, domain.Order](memory.New().Bucket("pending_orders"), correlation.Key)
}

type expiredLog struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (l *expiredLog) record(_ context.Context, o domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = append(l.orders, o)
}

func TestScheduler_DiscardsAfterWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	pending := newPending(t)
	var log expiredLog

	order := domain.Order{ItemID: "I1", Price: 500, Status: domain.StatusPaymentPending, CorrelationID: 7}
	require.NoError(t, pending.Insert(ctx, order.CorrelationID, order))

	s := NewScheduler(clk, pending, log.record)
	s.Arm(order.CorrelationID, 2*time.Minute)

	clk.Advance(2*time.Minute - time.Nanosecond)
	_, ok, err := pending.Get(ctx, order.CorrelationID)
	require.NoError(t, err)
	assert.True(t, ok, "still live just before the window elapses")

	clk.Advance(time.Nanosecond)
	_, ok, err = pending.Get(ctx, order.CorrelationID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, log.orders, 1)
	assert.Equal(t, "I1", log.orders[0].ItemID)
	assert.Zero(t, clk.Pending())
}

func TestScheduler_NoopWhenAlreadyRemoved(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(time.Now())
	pending := newPending(t)
	var log expiredLog

	require.NoError(t, pending.Insert(ctx, 9, domain.Order{CorrelationID: 9}))
	s := NewScheduler(clk, pending, log.record)
	s.Arm(9, time.Minute)

	_, ok, err := pending.Remove(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)

	clk.Advance(time.Minute)
	assert.Empty(t, log.orders)
}

func TestScheduler_NegativeDelayFiresImmediately(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(time.Now())
	pending := newPending(t)

	require.NoError(t, pending.Insert(ctx, 3, domain.Order{CorrelationID: 3}))
	NewScheduler(clk, pending, nil).Arm(3, -time.Hour)

	clk.Advance(0)
	_, ok, err := pending.Get(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingRemover struct{}

func (failingRemover) Remove(context.Context, uint64) (domain.Order, bool, error) {
	return domain.Order{}, false, errors.New("store down")
}

func TestScheduler_StoreErrorSkipsHook(t *testing.T) {
	clk := clock.NewManual(time.Now())
	called := false
	NewScheduler(clk, failingRemover{}, func(context.Context, domain.Order) { called = true }).Arm(1, 0)

	clk.Advance(0)
	assert.False(t, called)
}

func TestNewScheduler_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { NewScheduler(nil, failingRemover{}, nil) })
	assert.Panics(t, func() { NewScheduler(clock.NewSystem(), nil, nil) })
}
