package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/storefront/api"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	var logger *zap.Logger
	if cfg.Server.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront API",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env))

	// Connect mongo
	db, err := repository.NewMongo(&cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.Ping(ctx); err != nil {
		cancel()
		logger.Fatal("MongoDB unreachable", zap.Error(err))
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		cancel()
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}
	cancel()

	// Redis is optional: cache misses fall through to mongo
	var cache api.Cache
	rdb := repository.NewRedisRepository(&cfg.Redis)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx); err != nil {
		logger.Warn("Redis unreachable, continuing without cache", zap.Error(err))
	} else {
		cache = rdb
	}
	pingCancel()

	stores := api.Stores{
		Users:    repository.NewUserRepo(db),
		Products: repository.NewProductRepo(db),
		Carts:    repository.NewCartRepo(db),
		Orders:   repository.NewOrderRepo(db),
		Audit:    repository.NewAuditRepo(db),
	}

	provider := payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	server := api.NewServer(cfg, logger, stores, provider, cache)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: server.Handler(),
	}

	srvErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	logger.Info("Server started successfully", zap.String("addr", cfg.Server.Addr()))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-srvErr:
		logger.Fatal("Server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	if cache != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	if err := db.Close(shutdownCtx); err != nil {
		logger.Error("Failed to close MongoDB connection", zap.Error(err))
	}

	logger.Info("Server stopped")
}
