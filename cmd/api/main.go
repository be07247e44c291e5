package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-cart/internal/app"
	"storefront-cart/internal/config"
	"storefront-cart/internal/events"
	"storefront-cart/internal/httpserver"
	"storefront-cart/internal/idempotency"
	"storefront-cart/internal/logging"
	cartsvc "storefront-cart/internal/service/cart"
	itemsvc "storefront-cart/internal/service/item"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New("cart-api", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	ctx := context.Background()
	backend, err := app.OpenBackend(ctx, cfg, logger, app.Options{Migrate: true})
	if err != nil {
		logger.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer backend.Close()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaCartTopic, logger)
		logger.Info("publishing cart events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaCartTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publisher", zap.Error(err))
		}
	}()

	deps := httpserver.Deps{
		CartSvc: cartsvc.New(backend.Runner, publisher, logger,
			cartsvc.WithMaxAttempts(cfg.MutationMaxAttempts),
		),
		ItemSvc:        itemsvc.New(backend.Items),
		Store:          backend.Pinger,
		JWTSecret:      cfg.JWTSecret,
		CORSOrigins:    cfg.CORSOrigins,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	if cfg.RedisAddr != "" {
		client, err := idempotency.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal("connect redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer client.Close()
		deps.Idempotency = idempotency.NewRedisStore(client)
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, deps)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
