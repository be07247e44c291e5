package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	// DiscountPercentage takes Value percent off (15 means 15%).
	DiscountPercentage DiscountKind = "percentage"
	// DiscountFixed takes Value cents off.
	DiscountFixed DiscountKind = "fixed"
)

// Valid reports whether k is a known kind.
func (k DiscountKind) Valid() bool {
	switch k {
	case DiscountPercentage, DiscountFixed:
		return true
	default:
		return false
	}
}

type DiscountCode struct {
	Code      string          `json:"code"`
	Kind      DiscountKind    `json:"kind"`
	Value     decimal.Decimal `json:"value"`
	ValidFrom time.Time       `json:"validFrom"`
	ValidTo   time.Time       `json:"validTo"`
	Stackable bool            `json:"stackable"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ActiveAt reports whether the code's validity window contains t. ValidTo is exclusive.
func (d DiscountCode) ActiveAt(t time.Time) bool {
	if !d.ValidFrom.IsZero() && t.Before(d.ValidFrom) {
		return false
	}
	if !d.ValidTo.IsZero() && !t.Before(d.ValidTo) {
		return false
	}
	return true
}

var hundred = decimal.NewFromInt(100)

// AmountCents is the discount this kind/value takes off base, rounded half-up to
// whole cents and capped at base.
func AmountCents(kind DiscountKind, value decimal.Decimal, base int64) int64 {
	if base <= 0 || value.IsNegative() {
		return 0
	}
	var amount int64
	switch kind {
	case DiscountPercentage:
		amount = decimal.NewFromInt(base).Mul(value).Div(hundred).Round(0).IntPart()
	case DiscountFixed:
		amount = value.Round(0).IntPart()
	default:
		return 0
	}
	if amount > base {
		return base
	}
	return amount
}
