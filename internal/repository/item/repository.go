package item

import (
	"context"

	"storefront-cart/internal/domain"
)

// Repository reads the catalog and moves units between available and reserved stock.
type Repository interface {
	List(ctx context.Context) ([]domain.Item, error)
	Search(ctx context.Context, query string) ([]domain.Item, error)
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	Resolve(ctx context.Context, id string) (domain.InventorySnapshot, error)
	// ResolveForUpdate reads the snapshot and holds the item's row lock until the
	// enclosing transaction ends.
	ResolveForUpdate(ctx context.Context, id string) (domain.InventorySnapshot, error)
	Reserve(ctx context.Context, id string, n int) error
	Release(ctx context.Context, id string, n int) error
	// Consume removes up to n reserved units without returning them to stock.
	Consume(ctx context.Context, id string, n int) error
	Upsert(ctx context.Context, item domain.Item) (*domain.Item, error)
}
