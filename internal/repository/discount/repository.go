package discount

import (
	"context"

	"storefront-cart/internal/domain"
)

// Repository is the discount code registry plus the per-cart ledger of applied codes.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.DiscountCode, error)
	Upsert(ctx context.Context, code domain.DiscountCode) (*domain.DiscountCode, error)

	// ListApplied returns the codes attached to the user's cart in application order.
	ListApplied(ctx context.Context, userID string) ([]domain.DiscountCode, error)
	Attach(ctx context.Context, userID, code string) error
	// Detach reports whether the code was attached.
	Detach(ctx context.Context, userID, code string) (bool, error)
}
