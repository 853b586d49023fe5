package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/shoe-market/internal/marketplace/catalog"
	"github.com/jcmexdev/shoe-market/internal/marketplace/correlation"
	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
	"github.com/jcmexdev/shoe-market/internal/storage"
	"github.com/jcmexdev/shoe-market/internal/storage/memory"
)

type fixture struct {
	pending   *storage.Table[uint64, domain.Order]
	completed *storage.Table[domain.Principal, domain.Order]
	items     *catalog.Service
	item      domain.Item
	order     domain.Order
	rearmed   []domain.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	backend := memory.New()
	f := &fixture{
		pending:   storage.NewTable[uint64, domain.Order](backend.Bucket("pending_orders"), correlation.Key),
		completed: storage.NewTable[domain.Principal, domain.Order](backend.Bucket("orders"), domain.Principal.String),
		items:     catalog.NewService(backend.Bucket("items")),
	}

	item, err := f.items.AddItem(ctx, "seller", domain.ItemPayload{Name: "Air Runner", Price: 500})
	require.NoError(t, err)
	f.item = item
	f.order = domain.Order{
		ItemID:        item.ID,
		Price:         item.Price,
		Status:        domain.StatusPaymentPending,
		Seller:        item.Seller,
		CorrelationID: 77,
		CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.pending.Insert(ctx, f.order.CorrelationID, f.order))
	return f
}

func (f *fixture) deps(items ItemStore) CompletionDeps {
	return CompletionDeps{
		Reservations: f.pending,
		Items:        items,
		Completed:    f.completed,
		Rearm:        func(o domain.Order) { f.rearmed = append(f.rearmed, o) },
	}
}

func TestCompletionSteps_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := &Completion{Caller: "seller", ItemID: f.item.ID, Seller: "seller", Price: 500, Block: 42, CorrelationID: 77}

	require.NoError(t, NewOrchestrator("happy", NewCompletionSteps(c, f.deps(f.items))).Start(ctx))

	assert.Equal(t, domain.StatusCompleted, c.Result.Status)
	require.NotNil(t, c.Result.PaidAtBlock)
	assert.Equal(t, uint64(42), *c.Result.PaidAtBlock)

	_, ok, err := f.pending.Get(ctx, 77)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, ok, err := f.completed.Get(ctx, "seller")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.Result, stored)

	item, err := f.items.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), item.SoldAmount)
	assert.Empty(t, f.rearmed)
}

func TestCompletionSteps_MissingReservation(t *testing.T) {
	f := newFixture(t)
	c := &Completion{Caller: "seller", ItemID: f.item.ID, Seller: "seller", Price: 500, Block: 42, CorrelationID: 999}

	err := NewOrchestrator("missing", NewCompletionSteps(c, f.deps(f.items))).Start(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.rearmed)
}

func TestCompletionSteps_VanishedItemRestoresReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.items.DeleteItem(ctx, "seller", f.item.ID))
	c := &Completion{Caller: "seller", ItemID: f.item.ID, Seller: "seller", Price: 500, Block: 42, CorrelationID: 77}

	err := NewOrchestrator("vanished", NewCompletionSteps(c, f.deps(f.items))).Start(ctx)

	assert.ErrorIs(t, err, domain.ErrInconsistentState)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	restored, ok, err := f.pending.Get(ctx, 77)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.order, restored)
	assert.Equal(t, []domain.Order{f.order}, f.rearmed)

	_, ok, err = f.completed.Get(ctx, "seller")
	require.NoError(t, err)
	assert.False(t, ok)
}

// failingSales fails every RecordSale.
type failingSales struct {
	*catalog.Service
}

func (failingSales) RecordSale(context.Context, string) (domain.Item, error) {
	return domain.Item{}, errors.New("disk full")
}

func TestCompletionSteps_SaleWriteFailureRestoresReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := &Completion{Caller: "seller", ItemID: f.item.ID, Seller: "seller", Price: 500, Block: 42, CorrelationID: 77}

	err := NewOrchestrator("sale", NewCompletionSteps(c, f.deps(failingSales{Service: f.items}))).Start(ctx)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInconsistentState)
	_, ok, err := f.pending.Get(ctx, 77)
	require.NoError(t, err)
	assert.True(t, ok)

	item, err := f.items.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Zero(t, item.SoldAmount)
}

// failingCompleted rejects every completed-order write.
type failingCompleted struct{}

func (failingCompleted) Insert(context.Context, domain.Principal, domain.Order) error {
	return errors.New("disk full")
}

func TestCompletionSteps_PersistFailureRevertsSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := &Completion{Caller: "seller", ItemID: f.item.ID, Seller: "seller", Price: 500, Block: 42, CorrelationID: 77}
	deps := f.deps(f.items)
	deps.Completed = failingCompleted{}

	err := NewOrchestrator("persist", NewCompletionSteps(c, deps)).Start(ctx)

	require.Error(t, err)
	item, err := f.items.GetItem(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Zero(t, item.SoldAmount)

	restored, ok, err := f.pending.Get(ctx, 77)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.order, restored)
	assert.Equal(t, []domain.Order{f.order}, f.rearmed)
}

func TestCompletionSteps_ClaimMismatchRestoresReservation(t *testing.T) {
	tests := []struct {
		name   string
		itemID string
		seller domain.Principal
		price  uint64
	}{
		{name: "seller", seller: "accomplice", price: 500},
		{name: "price", seller: "seller", price: 1},
		{name: "item", itemID: "other-item", seller: "seller", price: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			itemID := tt.itemID
			if itemID == "" {
				itemID = f.item.ID
			}
			c := &Completion{Caller: "buyer", ItemID: itemID, Seller: tt.seller, Price: tt.price, Block: 42, CorrelationID: 77}

			err := NewOrchestrator("mismatch", NewCompletionSteps(c, f.deps(f.items))).Start(ctx)

			assert.ErrorIs(t, err, domain.ErrVerificationFailed)
			restored, ok, err := f.pending.Get(ctx, 77)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, f.order, restored)
			assert.Equal(t, []domain.Order{f.order}, f.rearmed)

			item, err := f.items.GetItem(ctx, f.item.ID)
			require.NoError(t, err)
			assert.Zero(t, item.SoldAmount)
			_, ok, err = f.completed.Get(ctx, "buyer")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestNewCompletionSteps_PersistIsLast(t *testing.T) {
	f := newFixture(t)
	steps := NewCompletionSteps(&Completion{}, f.deps(f.items))

	require.NotEmpty(t, steps)
	assert.IsType(t, &PersistOrderStep{}, steps[len(steps)-1])
}
