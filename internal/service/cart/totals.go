package cart

import (
	"time"

	"storefront-cart/internal/domain"
)

// ComputeTotals derives cart totals from line snapshots and the applied codes.
// Codes not valid at now contribute nothing. Stacked codes are each computed
// against the subtotal and summed; the sum is capped at the subtotal.
func ComputeTotals(lines []domain.CartLine, codes []domain.DiscountCode, now time.Time) domain.Totals {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.LineTotalCents()
	}

	var discount int64
	for _, c := range codes {
		if c.ActiveAt(now) {
			discount += domain.AmountCents(c.Kind, c.Value, subtotal)
		}
	}
	discount = min(discount, max(subtotal, 0))

	return domain.Totals{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		TotalCents:    max(subtotal-discount, 0),
	}
}
