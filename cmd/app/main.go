package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"payhub/internal/activity"
	"payhub/internal/config"
	"payhub/internal/db"
	"payhub/internal/gateway"
	"payhub/internal/logger"
	"payhub/internal/order"
	"payhub/internal/reconcile"
	"payhub/internal/server"
	"payhub/internal/subscription"
	"payhub/internal/wallet"
	"payhub/internal/webhook"

	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init()
	logger.Info("Starting payhub")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.InitWithLevel(cfg.LogLevel)

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	var workers sync.WaitGroup
	var recorder activity.Recorder = activity.LogRecorder{}
	var idempotencyStore *redis.Client
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, activity goes to the log and Idempotency-Key is ignored", "addr", cfg.RedisAddr, "error", err)
	} else {
		queue := activity.NewRedisRecorder(rdb, activity.LogSink{})
		recorder = queue
		idempotencyStore = rdb
		workers.Add(2)
		go func() { defer workers.Done(); queue.Start(ctx) }()
		go func() { defer workers.Done(); queue.ReportQueueLength(ctx, 30*time.Second) }()
		logger.Info("Activity worker initialized", "addr", cfg.RedisAddr)
	}

	gatewayRepo := gateway.NewConfigRepository(database)
	if err := gateway.EnsurePrimary(ctx, gatewayRepo, cfg.Gateway.Default); err != nil {
		logger.Error("No usable default gateway, top-ups stay unavailable until one is set", "error", err)
	}
	registry := gateway.NewRegistryFromConfig(gatewayRepo, cfg.Gateway)

	wallets := wallet.NewService(wallet.NewRepository(database))
	orders := order.NewManager(order.NewRepository(database), registry, recorder, order.Limits{
		MinAmount:       cfg.TopUp.MinAmount,
		MaxAmount:       cfg.TopUp.MaxAmount,
		InvoiceDuration: cfg.TopUp.InvoiceDuration,
		ExpiryGrace:     cfg.TopUp.ExpiryGrace,
	})
	subscriptions := subscription.NewService(subscription.NewRepository(database), wallets, subscription.AllowAll{}, recorder)
	processor := reconcile.NewProcessor(webhook.NewVerifiers(registry), orders, wallets)

	workers.Add(1)
	go func() { defer workers.Done(); orders.RunSweeper(ctx, cfg.TopUp.SweepInterval) }()

	checks := map[string]server.HealthCheck{
		"database": database.PingContext,
	}
	if idempotencyStore != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	srv := server.New(cfg, server.Deps{
		Orders:        orders,
		Wallets:       wallets,
		Subscriptions: subscriptions,
		Processor:     processor,
		Gateways:      gatewayRepo,
		Redis:         idempotencyStore,
		Checks:        checks,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	cancel()
	workers.Wait()

	logger.Info("Server stopped")
}
