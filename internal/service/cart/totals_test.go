package cart

import (
	"testing"
	"time"

	"storefront-cart/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	lines := []domain.CartLine{
		{ItemID: "a", Quantity: 2, UnitPriceCents: 1999},
		{ItemID: "b", Quantity: 1, UnitPriceCents: 1003},
	}
	pct := func(v string) domain.DiscountCode {
		return domain.DiscountCode{Code: "P" + v, Kind: domain.DiscountPercentage, Value: decimal.RequireFromString(v), Stackable: true}
	}
	fixed := func(v int64) domain.DiscountCode {
		return domain.DiscountCode{Code: "F", Kind: domain.DiscountFixed, Value: decimal.NewFromInt(v), Stackable: true}
	}
	expired := pct("50")
	expired.ValidTo = now

	cases := []struct {
		name  string
		lines []domain.CartLine
		codes []domain.DiscountCode
		want  domain.Totals
	}{
		{"empty cart", nil, nil, domain.Totals{}},
		{"no codes", lines, nil, domain.Totals{SubtotalCents: 5001, TotalCents: 5001}},
		// 5001 * 10% = 500.1
		{"percentage rounds", lines, []domain.DiscountCode{pct("10")}, domain.Totals{SubtotalCents: 5001, DiscountCents: 500, TotalCents: 4501}},
		// 5001 * 0.01% = 0.5001
		{"fraction rounds up", lines, []domain.DiscountCode{pct("0.01")}, domain.Totals{SubtotalCents: 5001, DiscountCents: 1, TotalCents: 5000}},
		// 250 * 1% = 2.5
		{"half rounds up", []domain.CartLine{{ItemID: "c", Quantity: 1, UnitPriceCents: 250}}, []domain.DiscountCode{pct("1")}, domain.Totals{SubtotalCents: 250, DiscountCents: 3, TotalCents: 247}},
		{"stacked codes add", lines, []domain.DiscountCode{pct("10"), fixed(250)}, domain.Totals{SubtotalCents: 5001, DiscountCents: 750, TotalCents: 4251}},
		{"capped at subtotal", lines, []domain.DiscountCode{fixed(9000)}, domain.Totals{SubtotalCents: 5001, DiscountCents: 5001, TotalCents: 0}},
		{"expired ignored", lines, []domain.DiscountCode{expired}, domain.Totals{SubtotalCents: 5001, TotalCents: 5001}},
		{"discount on empty cart", nil, []domain.DiscountCode{fixed(100)}, domain.Totals{}},
		// 3001 + 3001 exceeds 5001
		{"stacked sum capped", lines, []domain.DiscountCode{pct("60"), pct("60")}, domain.Totals{SubtotalCents: 5001, DiscountCents: 5001, TotalCents: 0}},
		{"negative value ignored", lines, []domain.DiscountCode{fixed(-100)}, domain.Totals{SubtotalCents: 5001, TotalCents: 5001}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeTotals(tc.lines, tc.codes, now))
		})
	}
}

func TestComputeTotalsMatchesItemDiscountMath(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	for _, subtotal := range []int64{1, 99, 250, 5001, 123457} {
		lines := []domain.CartLine{{ItemID: "a", Quantity: 1, UnitPriceCents: subtotal}}
		for _, v := range []string{"0.01", "1", "12.5", "33.333", "100"} {
			value := decimal.RequireFromString(v)
			code := domain.DiscountCode{Code: "C", Kind: domain.DiscountPercentage, Value: value}
			got := ComputeTotals(lines, []domain.DiscountCode{code}, now).DiscountCents
			assert.Equal(t, domain.AmountCents(domain.DiscountPercentage, value, subtotal), got, "%d at %s%%", subtotal, v)
		}
	}
}
