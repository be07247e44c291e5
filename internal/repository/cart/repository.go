package cart

import (
	"context"

	"storefront-cart/internal/domain"
)

// Repository owns carts and their (user, item) -> line mapping. Writes never
// touch rows outside the cart tables.
type Repository interface {
	// EnsureCart creates the user's cart if it does not exist yet.
	EnsureCart(ctx context.Context, userID string) error
	// GetCart returns the cart header (no lines) or domain.ErrNotFound.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// GetCartForUpdate is GetCart holding the cart row lock until the transaction ends.
	GetCartForUpdate(ctx context.Context, userID string) (*domain.Cart, error)
	DeleteCart(ctx context.Context, userID string) error

	Get(ctx context.Context, userID, itemID string) (*domain.CartLine, error)
	// Upsert sets the line's quantity, keeping the original price snapshot and
	// creation time when the line already exists.
	Upsert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error)
	Delete(ctx context.Context, userID, itemID string) error
	// ListByUser returns lines in insertion order.
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	DeleteByUser(ctx context.Context, userID string) error
}
