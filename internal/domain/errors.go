package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrOutOfStock is returned when the requested quantity exceeds the available stock.
	ErrOutOfStock = errors.New("out of stock")
	// ErrItemNotInCart is returned when a line-level mutation targets an item the cart does not hold.
	ErrItemNotInCart = errors.New("item not in cart")
	// ErrInvalidDiscount is returned for unknown or expired discount codes.
	ErrInvalidDiscount = errors.New("invalid discount code")
	// ErrAlreadyApplied is returned when a discount cannot be stacked onto the cart's current codes.
	ErrAlreadyApplied = errors.New("discount already applied")
	// ErrInvalidInput marks malformed ids or quantities.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized marks requests without a valid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDuplicateRequest is returned when an idempotency key has already been used.
	ErrDuplicateRequest = errors.New("duplicate request")
	// ErrInternal wraps persistence and transport failures.
	ErrInternal = errors.New("internal error")
)

type internalError struct {
	cause error
}

func (e *internalError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInternal, e.cause)
}

func (e *internalError) Unwrap() []error {
	return []error{ErrInternal, e.cause}
}

// Internal wraps an unexpected failure so that it matches ErrInternal while keeping
// the cause reachable for logging. Domain errors pass through unchanged.
func Internal(err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return &internalError{cause: err}
}

// IsDomainError reports whether err is one of the stable, caller-facing errors.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrOutOfStock,
		ErrItemNotInCart,
		ErrInvalidDiscount,
		ErrAlreadyApplied,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrDuplicateRequest,
		ErrInternal,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
