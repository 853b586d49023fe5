// Package catalog owns the listed items: creation, lookup, search and the
// social counters (likes, comments). It is also the item provider the order
// service reads prices from and records sales against.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
	"github.com/jcmexdev/shoe-market/internal/storage"
)

type Service struct {
	items *storage.Table[string, domain.Item]
	newID func() string
}

func NewService(items storage.KV) *Service {
	return &Service{
		items: storage.NewTable[string, domain.Item](items, func(id string) string { return id }),
		newID: uuid.NewString,
	}
}

func validate(p domain.ItemPayload) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidPayload)
	}
	if p.Price == 0 {
		return fmt.Errorf("%w: price must be positive", domain.ErrInvalidPayload)
	}
	return nil
}

func (s *Service) AddItem(ctx context.Context, seller domain.Principal, p domain.ItemPayload) (domain.Item, error) {
	if seller == "" {
		return domain.Item{}, domain.ErrUnauthenticated
	}
	if err := validate(p); err != nil {
		return domain.Item{}, err
	}

	item := domain.Item{
		ID:          s.newID(),
		Name:        p.Name,
		Description: p.Description,
		Location:    p.Location,
		Price:       p.Price,
		Size:        p.Size,
		Seller:      seller,
		ImageURL:    p.ImageURL,
	}
	if err := s.items.Insert(ctx, item.ID, item); err != nil {
		return domain.Item{}, fmt.Errorf("failed to store item: %w", err)
	}

	slog.InfoContext(ctx, "item listed", "item_id", item.ID, "seller", seller, "price", item.Price)
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.Item, error) {
	item, ok, err := s.items.Get(ctx, id)
	if err != nil {
		return domain.Item{}, fmt.Errorf("failed to load item %s: %w", id, err)
	}
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: id=%s", domain.ErrItemNotFound, id)
	}
	return item, nil
}

// ListItems returns every item ordered by id.
func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	items, err := s.items.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Service) CountItems(ctx context.Context) (int, error) {
	items, err := s.items.Values(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return len(items), nil
}

func (s *Service) filter(ctx context.Context, keep func(domain.Item) bool) ([]domain.Item, error) {
	all, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Item, 0, len(all))
	for _, item := range all {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// SearchByName matches a case-insensitive substring of the name.
func (s *Service) SearchByName(ctx context.Context, query string) ([]domain.Item, error) {
	q := strings.ToLower(query)
	return s.filter(ctx, func(i domain.Item) bool {
		return strings.Contains(strings.ToLower(i.Name), q)
	})
}

func (s *Service) FilterByLocation(ctx context.Context, location string) ([]domain.Item, error) {
	return s.filter(ctx, func(i domain.Item) bool {
		return strings.EqualFold(i.Location, location)
	})
}

// FilterByPriceRange is inclusive at both ends.
func (s *Service) FilterByPriceRange(ctx context.Context, minPrice, maxPrice uint64) ([]domain.Item, error) {
	if minPrice > maxPrice {
		return nil, fmt.Errorf("%w: min price %d exceeds max price %d", domain.ErrInvalidPayload, minPrice, maxPrice)
	}
	return s.filter(ctx, func(i domain.Item) bool {
		return i.Price >= minPrice && i.Price <= maxPrice
	})
}

func (s *Service) FilterBySeller(ctx context.Context, seller domain.Principal) ([]domain.Item, error) {
	return s.filter(ctx, func(i domain.Item) bool { return i.Seller == seller })
}

// mutate applies fn to the stored item as one atomic read-modify-write, so
// concurrent counters and edits on the same item never overwrite each other.
func (s *Service) mutate(ctx context.Context, id string, fn func(*domain.Item) error) (domain.Item, error) {
	item, ok, err := s.items.Update(ctx, id, func(it domain.Item) (domain.Item, error) {
		err := fn(&it)
		return it, err
	})
	if err != nil {
		return domain.Item{}, err
	}
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: id=%s", domain.ErrItemNotFound, id)
	}
	return item, nil
}

// UpdateItem replaces the seller-editable fields. Seller, sold count, likes
// and comments are kept.
func (s *Service) UpdateItem(ctx context.Context, caller domain.Principal, id string, p domain.ItemPayload) (domain.Item, error) {
	if err := validate(p); err != nil {
		return domain.Item{}, err
	}
	return s.mutate(ctx, id, func(item *domain.Item) error {
		if item.Seller != caller {
			return domain.ErrNotOwner
		}
		item.Name = p.Name
		item.Description = p.Description
		item.Location = p.Location
		item.Price = p.Price
		item.Size = p.Size
		item.ImageURL = p.ImageURL
		return nil
	})
}

func (s *Service) DeleteItem(ctx context.Context, caller domain.Principal, id string) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.Seller != caller {
		return domain.ErrNotOwner
	}
	if _, _, err := s.items.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	slog.InfoContext(ctx, "item delisted", "item_id", id, "seller", caller)
	return nil
}

// RecordSale increments the sold count by one.
func (s *Service) RecordSale(ctx context.Context, id string) (domain.Item, error) {
	return s.mutate(ctx, id, func(item *domain.Item) error {
		item.SoldAmount++
		return nil
	})
}

// RevertSale undoes one RecordSale. The count never drops below zero.
func (s *Service) RevertSale(ctx context.Context, id string) (domain.Item, error) {
	return s.mutate(ctx, id, func(item *domain.Item) error {
		if item.SoldAmount > 0 {
			item.SoldAmount--
		}
		return nil
	})
}

func (s *Service) LikeItem(ctx context.Context, id string) (domain.Item, error) {
	return s.mutate(ctx, id, func(item *domain.Item) error {
		item.Likes++
		return nil
	})
}

// AddComment appends text on its own line and returns all comments.
func (s *Service) AddComment(ctx context.Context, id, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: comment is empty", domain.ErrInvalidPayload)
	}
	item, err := s.mutate(ctx, id, func(item *domain.Item) error {
		if item.Comments == "" {
			item.Comments = text
		} else {
			item.Comments += "\n" + text
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return item.Comments, nil
}

func (s *Service) Comments(ctx context.Context, id string) (string, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	return item.Comments, nil
}
