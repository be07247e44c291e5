package app

import (
	"context"
	"testing"

	"storefront-cart/internal/config"
	"storefront-cart/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenBackendMemory(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBackend(ctx, config.Config{StoreDriver: DriverMemory}, zap.NewNop(), Options{Migrate: true})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, DriverMemory, b.Driver)
	require.NoError(t, b.Pinger.Ping(ctx))

	it, err := b.Items.Upsert(ctx, domain.Item{Title: "Mug", PriceCents: 100, Stock: 1})
	require.NoError(t, err)
	got, err := b.Items.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Title)
}

func TestOpenBackendUnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), config.Config{StoreDriver: "sqlite"}, zap.NewNop(), Options{})
	assert.ErrorContains(t, err, "sqlite")
}
