package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/montero-exchange/ledger/internal/api"
	"github.com/montero-exchange/ledger/internal/api/middleware"
	"github.com/montero-exchange/ledger/internal/config"
	"github.com/montero-exchange/ledger/internal/db"
	"github.com/montero-exchange/ledger/internal/idempotency"
	"github.com/montero-exchange/ledger/internal/notify"
	"github.com/montero-exchange/ledger/internal/observability"
	"github.com/montero-exchange/ledger/internal/oracle"
	"github.com/montero-exchange/ledger/internal/repository"
	"github.com/montero-exchange/ledger/internal/service"
	"github.com/montero-exchange/ledger/internal/worker"
)

// Run bootstraps the HTTP server and swap worker, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewPostgresStore(pool)
	idemStore := idempotency.NewStore(redisClient, cfg.IdempotencyTTL)

	prices := oracle.NewStaticOracle()
	// The settlement asset is the unit of account; its price is 1 by
	// definition.
	prices.SetPrice(cfg.SettlementAsset, decimal.NewFromInt(1))
	priceCache := oracle.NewCachedOracle(prices, redisClient, cfg.PriceCacheTTL)

	notifier := notify.NewStoreNotifier(store)
	audit := service.NewAuditService(store)
	referral := service.NewReferralService(cfg.ReferralBonusRate)

	svcs := api.Services{
		Portfolios:    service.NewPortfolioService(store, audit),
		Deposits:      service.NewDepositService(store, audit, notifier, referral, cfg.DepositFeeRate),
		Withdrawals:   service.NewWithdrawalService(store, audit, notifier, cfg.WithdrawalFeeRate),
		Swaps:         service.NewSwapService(store, audit, notifier, priceCache, cfg.SettlementAsset, cfg.SwapMinLead, cfg.SwapMaxLead),
		Notifications: service.NewNotificationService(store),
		Prices:        prices,
		PriceCache:    priceCache,
	}

	swapWorker := worker.NewSwapWorker(svcs.Swaps).WithInterval(cfg.SwapSweepInterval)
	stopWorker := swapWorker.Run(ctx)
	logger.Info("swap worker started", zap.Duration("interval", cfg.SwapSweepInterval))

	router := api.NewRouter(cfg, logger, pool, redisClient, idemStore, svcs)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping swap worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
