package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/capability"
	"github.com/meridian-erp/meridian-erp/internal/fx"
	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sales"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rateStore := fx.NewStore(pool, cfg.SystemCurrency)
	rateSource := fx.NewCachedSource(rateStore, redisClient, cfg.FXCacheTTL)

	invoiceClient := invoicing.NewClient(cfg.InvoicingURL)
	if err := invoiceClient.Ping(ctx); err != nil {
		logger.Warn("invoicing ping", slog.Any("error", err))
	}

	capabilityService := capability.NewService(pool)
	capabilityMiddleware := capability.Middleware{Service: capabilityService, Logger: logger}

	auditLogger := shared.NewAuditLogger(pool)

	metrics := observability.NewMetrics()

	calculator := sales.NewCalculator(cfg.SystemCurrency)
	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, rateSource, invoiceClient, capabilityService, auditLogger, calculator, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SalesHandler:         salesHandler,
		CapabilityMiddleware: capabilityMiddleware,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
