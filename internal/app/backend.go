// Package app assembles the storage backend shared by the commands.
package app

import (
	"context"
	"fmt"

	"storefront-cart/internal/config"
	"storefront-cart/internal/db"
	"storefront-cart/internal/migrate"
	"storefront-cart/internal/repository/discount"
	"storefront-cart/internal/repository/item"
	"storefront-cart/internal/repository/memory"
	"storefront-cart/internal/repository/txn"

	"go.uber.org/zap"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Backend is one storage driver's repositories and unit-of-work runner.
type Backend struct {
	Driver    string
	Runner    txn.Runner
	Items     item.Repository
	Discounts discount.Repository
	Pinger    interface{ Ping(ctx context.Context) error }

	close func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Options tune OpenBackend.
type Options struct {
	// Migrate applies pending schema migrations after connecting.
	Migrate bool
}

// OpenBackend connects the driver named by cfg.StoreDriver.
func OpenBackend(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*Backend, error) {
	switch cfg.StoreDriver {
	case DriverMemory:
		store := memory.New()
		logger.Warn("using in-memory store; state is lost on exit and not shared between processes")
		return &Backend{
			Driver:    DriverMemory,
			Runner:    store.Runner(),
			Items:     store.Items(),
			Discounts: store.Discounts(),
			Pinger:    store,
		}, nil
	case DriverPostgres, "":
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		if opts.Migrate {
			if err := migrate.Apply(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("migrations applied")
		}
		return &Backend{
			Driver:    DriverPostgres,
			Runner:    txn.NewPostgres(pool, logger.Named("txn")),
			Items:     item.NewPostgres(pool, logger.Named("item.repo")),
			Discounts: discount.NewPostgres(pool),
			Pinger:    pool,
			close:     pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
