// Package ports declares what the HTTP layer needs from the marketplace core.
package ports

import (
	"context"
	"time"

	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
	"github.com/jcmexdev/shoe-market/internal/marketplace/orders"
)

type CatalogService interface {
	AddItem(ctx context.Context, seller domain.Principal, p domain.ItemPayload) (domain.Item, error)
	GetItem(ctx context.Context, id string) (domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	CountItems(ctx context.Context) (int, error)
	SearchByName(ctx context.Context, query string) ([]domain.Item, error)
	FilterByLocation(ctx context.Context, location string) ([]domain.Item, error)
	FilterByPriceRange(ctx context.Context, minPrice, maxPrice uint64) ([]domain.Item, error)
	FilterBySeller(ctx context.Context, seller domain.Principal) ([]domain.Item, error)
	UpdateItem(ctx context.Context, caller domain.Principal, id string, p domain.ItemPayload) (domain.Item, error)
	DeleteItem(ctx context.Context, caller domain.Principal, id string) error
	LikeItem(ctx context.Context, id string) (domain.Item, error)
	AddComment(ctx context.Context, id, text string) (string, error)
	Comments(ctx context.Context, id string) (string, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, requester domain.Principal, itemID string) (domain.Order, error)
	CompleteOrder(ctx context.Context, caller domain.Principal, in orders.CompleteOrderInput) (domain.Order, error)
	VerifyPayment(ctx context.Context, caller, receiver domain.Principal, amount, block, memo uint64) (bool, error)
	PendingOrders(ctx context.Context) ([]domain.Order, error)
	CompletedOrders(ctx context.Context) ([]domain.Order, error)
	Window() time.Duration
}

// LedgerTransferer posts transfers to a development ledger.
type LedgerTransferer interface {
	Transfer(ctx context.Context, from, to domain.Principal, amount, memo uint64) (uint64, error)
}
