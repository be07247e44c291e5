// Package events carries cart change notifications to Kafka.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	CartItemAdded       Type = "cart.item_added"
	CartItemIncremented Type = "cart.item_incremented"
	CartItemDecremented Type = "cart.item_decremented"
	CartItemRemoved     Type = "cart.item_removed"
	CartCleared         Type = "cart.cleared"
	CartDeleted         Type = "cart.deleted"
	CartCheckedOut      Type = "cart.checked_out"
	CartDiscountApplied Type = "cart.discount_applied"
	CartDiscountRemoved Type = "cart.discount_removed"

	// OrderPlaced is consumed, never published, by this service.
	OrderPlaced Type = "order.placed"
)

// CartEvent describes one committed cart mutation. Quantity is the line's
// quantity after the mutation; Delta is the signed change applied to it.
type CartEvent struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	UserID     string    `json:"userId"`
	ItemID     string    `json:"itemId,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	Delta      int       `json:"delta,omitempty"`
	Code       string    `json:"code,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewCartEvent stamps an event with a fresh id and the current time.
func NewCartEvent(typ Type, userID string) CartEvent {
	return CartEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderPlacedEvent is the payload the order service emits once checkout succeeds.
type OrderPlacedEvent struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
}

type Publisher interface {
	Publish(ctx context.Context, evt CartEvent) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, CartEvent) error { return nil }
func (Nop) Close() error                             { return nil }
