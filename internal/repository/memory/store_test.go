package memory

import (
	"context"
	"errors"
	"testing"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/repository/txn"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItem(t *testing.T, s *Store, stock int) *domain.Item {
	t.Helper()
	it, err := s.Items().Upsert(context.Background(), domain.Item{Title: "Mug", PriceCents: 1200, Stock: stock})
	require.NoError(t, err)
	return it
}

func TestReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	s := New()
	it := seedItem(t, s, 5)

	require.NoError(t, s.Items().Reserve(ctx, it.ID, 3))
	assert.ErrorIs(t, s.Items().Reserve(ctx, it.ID, 3), domain.ErrOutOfStock)
	assert.ErrorIs(t, s.Items().Reserve(ctx, "missing", 1), domain.ErrNotFound)

	got, err := s.Items().GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
	assert.Equal(t, 3, got.Reserved)

	// Release never returns more than is reserved.
	require.NoError(t, s.Items().Release(ctx, it.ID, 10))
	got, err = s.Items().GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	assert.Equal(t, 0, got.Reserved)
}

func TestConsumeLeavesStockUntouched(t *testing.T) {
	ctx := context.Background()
	s := New()
	it := seedItem(t, s, 5)

	require.NoError(t, s.Items().Reserve(ctx, it.ID, 2))
	require.NoError(t, s.Items().Consume(ctx, it.ID, 2))
	assert.ErrorIs(t, s.Items().Consume(ctx, "missing", 1), domain.ErrNotFound)

	got, err := s.Items().GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
	assert.Equal(t, 0, got.Reserved)

	// Consume never takes more than is reserved.
	require.NoError(t, s.Items().Consume(ctx, it.ID, 4))
	got, err = s.Items().GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
	assert.Equal(t, 0, got.Reserved)
}

func TestUpsertKeepsReservedAndCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := New()
	it := seedItem(t, s, 5)
	require.NoError(t, s.Items().Reserve(ctx, it.ID, 2))

	updated, err := s.Items().Upsert(ctx, domain.Item{ID: it.ID, Title: "Big mug", PriceCents: 1500, Stock: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Reserved)
	assert.Equal(t, it.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 10, updated.Stock)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Items().Upsert(ctx, domain.Item{Title: "Blue Kettle", PriceCents: 100, Stock: 1})
	require.NoError(t, err)
	_, err = s.Items().Upsert(ctx, domain.Item{Title: "Teapot", Description: "fits any KETTLE stand", PriceCents: 100, Stock: 1})
	require.NoError(t, err)
	_, err = s.Items().Upsert(ctx, domain.Item{Title: "Spoon", PriceCents: 100, Stock: 1})
	require.NoError(t, err)

	found, err := s.Items().Search(ctx, "kettle")
	require.NoError(t, err)
	titles := []string{}
	for _, it := range found {
		titles = append(titles, it.Title)
	}
	assert.ElementsMatch(t, []string{"Blue Kettle", "Teapot"}, titles)

	none, err := s.Items().Search(ctx, "fork")
	require.NoError(t, err)
	assert.Empty(t, none)

	none, err = s.Items().Search(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, none, "wildcards match literally")

	all, err := s.Items().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	it := seedItem(t, s, 5)
	boom := errors.New("boom")

	err := s.Runner().InTx(ctx, func(ctx context.Context, r txn.Repos) error {
		require.NoError(t, r.Carts.EnsureCart(ctx, "u1"))
		require.NoError(t, r.Items.Reserve(ctx, it.ID, 2))
		_, err := r.Carts.Upsert(ctx, domain.CartLine{UserID: "u1", ItemID: it.ID, Quantity: 2, UnitPriceCents: 1200})
		require.NoError(t, err)

		// Reads inside the unit see its own writes.
		line, err := r.Carts.Get(ctx, "u1", it.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, line.Quantity)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Carts().GetCart(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := s.Items().GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestInTxHonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.Runner().InTx(ctx, func(context.Context, txn.Repos) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCartLinesKeepInsertionOrderAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := New()
	carts := s.Carts()

	_, err := carts.Upsert(ctx, domain.CartLine{UserID: "u1", ItemID: "a", Quantity: 1, UnitPriceCents: 100})
	assert.ErrorIs(t, err, domain.ErrNotFound, "lines need a cart")

	require.NoError(t, carts.EnsureCart(ctx, "u1"))
	for _, id := range []string{"c", "a", "b"} {
		_, err := carts.Upsert(ctx, domain.CartLine{UserID: "u1", ItemID: id, Quantity: 1, UnitPriceCents: 100})
		require.NoError(t, err)
	}
	updated, err := carts.Upsert(ctx, domain.CartLine{UserID: "u1", ItemID: "a", Quantity: 4, UnitPriceCents: 999})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, int64(100), updated.UnitPriceCents)

	lines, err := carts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{lines[0].ItemID, lines[1].ItemID, lines[2].ItemID})

	require.NoError(t, carts.Delete(ctx, "u1", "a"))
	require.NoError(t, carts.Delete(ctx, "u1", "a"))
	lines, err = carts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	empty, err := carts.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDeleteCartCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Discounts().Upsert(ctx, domain.DiscountCode{Code: "TEN", Kind: domain.DiscountPercentage, Value: decimal.NewFromInt(10)})
	require.NoError(t, err)

	require.NoError(t, s.Carts().EnsureCart(ctx, "u1"))
	_, err = s.Carts().Upsert(ctx, domain.CartLine{UserID: "u1", ItemID: "a", Quantity: 1, UnitPriceCents: 100})
	require.NoError(t, err)
	require.NoError(t, s.Discounts().Attach(ctx, "u1", "TEN"))

	require.NoError(t, s.Carts().DeleteCart(ctx, "u1"))
	assert.ErrorIs(t, s.Carts().DeleteCart(ctx, "u1"), domain.ErrNotFound)

	lines, err := s.Carts().ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)
	applied, err := s.Discounts().ListApplied(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestDiscountLedger(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := s.Discounts()
	for _, code := range []string{"B", "A"} {
		_, err := d.Upsert(ctx, domain.DiscountCode{Code: code, Kind: domain.DiscountFixed, Value: decimal.NewFromInt(100), Stackable: true})
		require.NoError(t, err)
	}
	assert.ErrorIs(t, d.Attach(ctx, "u1", "A"), domain.ErrNotFound, "cart must exist")

	require.NoError(t, s.Carts().EnsureCart(ctx, "u1"))
	assert.ErrorIs(t, d.Attach(ctx, "u1", "NOPE"), domain.ErrNotFound)
	require.NoError(t, d.Attach(ctx, "u1", "B"))
	require.NoError(t, d.Attach(ctx, "u1", "A"))
	require.NoError(t, d.Attach(ctx, "u1", "B"))

	applied, err := d.ListApplied(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "B", applied[0].Code)
	assert.Equal(t, "A", applied[1].Code)

	removed, err := d.Detach(ctx, "u1", "B")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = d.Detach(ctx, "u1", "B")
	require.NoError(t, err)
	assert.False(t, removed)
}
