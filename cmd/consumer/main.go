package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"storefront-cart/internal/app"
	"storefront-cart/internal/config"
	"storefront-cart/internal/consumer"
	"storefront-cart/internal/events"
	"storefront-cart/internal/logging"
	cartsvc "storefront-cart/internal/service/cart"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New("cart-consumer", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := app.OpenBackend(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer backend.Close()

	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaCartTopic, logger)
	defer publisher.Close()

	carts := cartsvc.New(backend.Runner, publisher, logger,
		cartsvc.WithMaxAttempts(cfg.MutationMaxAttempts),
	)

	reader := consumer.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaOrderTopic, cfg.KafkaGroupID)
	defer reader.Close()

	logger.Info("consuming order events",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaOrderTopic),
		zap.String("group_id", cfg.KafkaGroupID),
	)
	if err := consumer.New(reader, carts, logger.Named("consumer")).Run(ctx); err != nil {
		logger.Error("consumer failed", zap.Error(err))
	}
}
