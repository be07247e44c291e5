package discount

import (
	"context"
	"testing"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = "5f0c2b5e-8d3a-4c1e-9d7a-2b1f3e4a5c6d"

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T, codes ...domain.DiscountCode) *memory.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	for _, c := range codes {
		_, err := s.Discounts().Upsert(ctx, c)
		require.NoError(t, err)
	}
	require.NoError(t, s.Carts().EnsureCart(ctx, userID))
	return s
}

func code(name string, stackable bool) domain.DiscountCode {
	return domain.DiscountCode{Code: name, Kind: domain.DiscountFixed, Value: decimal.NewFromInt(500), Stackable: stackable}
}

func TestApplyUnknownOrExpired(t *testing.T) {
	expired := code("OLD", true)
	expired.ValidTo = now.Add(-time.Hour)
	upcoming := code("SOON", true)
	upcoming.ValidFrom = now.Add(time.Hour)
	s := newStore(t, expired, upcoming)
	l := NewLedger(nil)
	ctx := context.Background()

	for _, name := range []string{"NOPE", "OLD", "SOON"} {
		_, err := l.Apply(ctx, s.Discounts(), userID, name, now)
		assert.ErrorIs(t, err, domain.ErrInvalidDiscount, name)
	}
}

func TestApplyNonStackableTwice(t *testing.T) {
	s := newStore(t, code("SOLO", false))
	l := NewLedger(nil)
	ctx := context.Background()

	dc, err := l.Apply(ctx, s.Discounts(), userID, " SOLO ", now)
	require.NoError(t, err)
	assert.Equal(t, "SOLO", dc.Code)

	_, err = l.Apply(ctx, s.Discounts(), userID, "SOLO", now)
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	removed, err := l.Remove(ctx, s.Discounts(), userID, "SOLO")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = l.Apply(ctx, s.Discounts(), userID, "SOLO", now)
	assert.NoError(t, err)
}

func TestStackingRules(t *testing.T) {
	cases := []struct {
		name    string
		first   domain.DiscountCode
		second  domain.DiscountCode
		wantErr error
	}{
		{"stackable on stackable", code("A", true), code("B", true), nil},
		{"same stackable code", code("A", true), code("A", true), domain.ErrAlreadyApplied},
		{"stackable on non-stackable", code("A", false), code("B", true), domain.ErrAlreadyApplied},
		{"non-stackable on stackable", code("A", true), code("B", false), domain.ErrAlreadyApplied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t, tc.first, tc.second)
			l := NewLedger(nil)
			ctx := context.Background()

			_, err := l.Apply(ctx, s.Discounts(), userID, tc.first.Code, now)
			require.NoError(t, err)
			_, err = l.Apply(ctx, s.Discounts(), userID, tc.second.Code, now)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)

			active, err := l.Active(ctx, s.Discounts(), userID, now)
			require.NoError(t, err)
			require.Len(t, active, 2)
			assert.Equal(t, tc.first.Code, active[0].Code)
		})
	}
}

func TestApplyDetachesExpiredCodes(t *testing.T) {
	short := code("SHORT", false)
	short.ValidTo = now.Add(time.Hour)
	s := newStore(t, short, code("NEXT", false))
	l := NewLedger(nil)
	ctx := context.Background()

	_, err := l.Apply(ctx, s.Discounts(), userID, "SHORT", now)
	require.NoError(t, err)

	later := now.Add(2 * time.Hour)
	active, err := l.Active(ctx, s.Discounts(), userID, later)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = l.Apply(ctx, s.Discounts(), userID, "NEXT", later)
	require.NoError(t, err)

	applied, err := s.Discounts().ListApplied(ctx, userID)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "NEXT", applied[0].Code)
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	s := newStore(t)
	removed, err := NewLedger(nil).Remove(context.Background(), s.Discounts(), userID, "GHOST")
	require.NoError(t, err)
	assert.False(t, removed)
}
