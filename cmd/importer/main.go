package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"storefront-cart/internal/app"
	"storefront-cart/internal/config"
	"storefront-cart/internal/importer"
	"storefront-cart/internal/logging"

	"go.uber.org/zap"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to item CSV (id,title,description,price_cents,discount_kind,discount_value,stock)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger, err := logging.New("importer", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.StoreDriver == app.DriverMemory {
		logger.Fatal("importing needs a persistent store; set STORE_DRIVER=postgres")
	}

	ctx := context.Background()
	backend, err := app.OpenBackend(ctx, cfg, logger, app.Options{Migrate: true})
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer backend.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.String("file", filePath), zap.Error(err))
	}
	defer f.Close()

	start := time.Now()
	count, err := importer.NewCSVImporter(f, backend.Items, logger.Named("importer")).Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Int("imported", count), zap.Error(err))
	}

	fmt.Printf("Imported %d items in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
