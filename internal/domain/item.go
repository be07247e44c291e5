package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog entry. Stock counts units still available; Reserved counts
// units currently held by cart lines.
type Item struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	PriceCents  int64         `json:"priceCents"`
	Discount    *ItemDiscount `json:"discount,omitempty"`
	Stock       int           `json:"stock"`
	Reserved    int           `json:"reserved"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type ItemDiscount struct {
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// EffectivePriceCents is the unit price after the item's own discount.
func (i Item) EffectivePriceCents() int64 {
	if i.Discount == nil {
		return i.PriceCents
	}
	return i.PriceCents - AmountCents(i.Discount.Kind, i.Discount.Value, i.PriceCents)
}

// Snapshot captures the fields the cart engine prices and reserves against.
func (i Item) Snapshot() InventorySnapshot {
	return InventorySnapshot{
		ItemID:              i.ID,
		PriceCents:          i.PriceCents,
		EffectivePriceCents: i.EffectivePriceCents(),
		Discount:            i.Discount,
		Stock:               i.Stock,
	}
}

// InventorySnapshot is the point-in-time view of an item's price and availability.
type InventorySnapshot struct {
	ItemID              string        `json:"itemId"`
	PriceCents          int64         `json:"priceCents"`
	EffectivePriceCents int64         `json:"effectivePriceCents"`
	Discount            *ItemDiscount `json:"discount,omitempty"`
	Stock               int           `json:"stock"`
}
