package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/events"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/gateway/mercadopago"
	"github.com/voxelpay/payments/internal/gateway/offline"
	"github.com/voxelpay/payments/internal/gateway/paypal"
	"github.com/voxelpay/payments/internal/gateway/paystack"
	"github.com/voxelpay/payments/internal/gateway/square"
	"github.com/voxelpay/payments/internal/handlers"
	"github.com/voxelpay/payments/internal/service"
	"github.com/voxelpay/payments/internal/transient"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payments api",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	database, err := db.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	transients := newTransientStore(ctx, cfg, logger)
	publisher := newPublisher(cfg, logger)

	env := &gateway.Env{
		BaseURL:       cfg.Server.BaseURL,
		CaptureMethod: cfg.App.CaptureMethod,
		Logger:        logger,
		Transients:    transients,
	}
	registry := newRegistry(cfg, env, logger)

	router := handlers.NewRouter(database, cfg, registry, transients, publisher, logger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	marketplaceService := service.NewMarketplaceService(database, cfg.Marketplace, registry, publisher, logger)
	go service.NewPayoutWorker(database, marketplaceService, logger).Run(workerCtx)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// newRegistry registers every provider with usable credentials. The offline
// gateway is always available.
func newRegistry(cfg *config.Config, env *gateway.Env, logger *slog.Logger) *gateway.Registry {
	registry := gateway.NewRegistry()

	if cfg.Providers.PayPal.Configured() {
		registry.Register(paypal.New(cfg.Providers.PayPal, env))
	}
	if cfg.Providers.MercadoPago.Configured() {
		registry.Register(mercadopago.New(cfg.Providers.MercadoPago, env))
	}
	if cfg.Providers.Paystack.Configured() {
		registry.Register(paystack.New(cfg.Providers.Paystack, env))
	}
	if cfg.Providers.Square.Configured() {
		registry.Register(square.New(cfg.Providers.Square, env))
	}
	registry.Register(offline.New())

	logger.Info("payment gateways registered", "providers", registry.Keys())
	return registry
}

// newTransientStore prefers redis; a failed connection falls back to the
// in-process store so a single node can still run.
func newTransientStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) transient.Store {
	store, err := transient.NewRedisStore(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory transient store",
			"addr", cfg.Redis.Addr,
			"error", err)
		return transient.NewMemoryStore()
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	return store
}

func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NopPublisher{}
	}
	publisher, err := events.NewKafkaPublisher(&cfg.Kafka, logger)
	if err != nil {
		logger.Warn("kafka unavailable, events disabled",
			"brokers", cfg.Kafka.Brokers,
			"error", err)
		return events.NopPublisher{}
	}
	logger.Info("kafka event publisher started", "topic", cfg.Kafka.Topic)
	return publisher
}
