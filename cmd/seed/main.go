package main

import (
	"context"
	"time"

	"storefront-cart/internal/app"
	"storefront-cart/internal/config"
	"storefront-cart/internal/logging"
	"storefront-cart/internal/seed"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New("seed", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.StoreDriver == app.DriverMemory {
		logger.Fatal("seeding needs a persistent store; set STORE_DRIVER=postgres")
	}

	ctx := context.Background()
	backend, err := app.OpenBackend(ctx, cfg, logger, app.Options{Migrate: true})
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer backend.Close()

	if err := seed.Apply(ctx, backend.Items, backend.Discounts, time.Now()); err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}

	logger.Info("seed applied")
}
