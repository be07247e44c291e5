package domain

import "time"

// Cart is the read model returned to clients. Totals are derived on every read.
// CreatedAt is nil for a user who has no cart yet.
type Cart struct {
	UserID        string     `json:"userId"`
	Lines         []CartLine `json:"lines"`
	DiscountCodes []string   `json:"discountCodes"`
	Totals        Totals     `json:"totals"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

type CartLine struct {
	UserID         string    `json:"-"`
	ItemID         string    `json:"itemId"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LineTotalCents is quantity times the snapshotted unit price.
func (l CartLine) LineTotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

type Totals struct {
	SubtotalCents int64 `json:"subtotalCents"`
	DiscountCents int64 `json:"discountCents"`
	TotalCents    int64 `json:"totalCents"`
}
