package txn

import (
	"context"
	"errors"

	"storefront-cart/internal/repository/cart"
	"storefront-cart/internal/repository/discount"
	"storefront-cart/internal/repository/item"
)

// ErrConflict marks a unit of work that lost a race with a concurrent one and may
// be retried from the start.
var ErrConflict = errors.New("transaction conflict")

// Repos are bound to a single unit of work.
type Repos struct {
	Items     item.Repository
	Carts     cart.Repository
	Discounts discount.Repository
}

// Runner executes fn atomically: either every write fn made becomes visible or none does.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	// InReadTx runs fn against a consistent read-only snapshot.
	InReadTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
