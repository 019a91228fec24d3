package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/greengate-erp/greengate-erp/internal/app"
	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/directory"
	"github.com/greengate-erp/greengate-erp/internal/observability"
	"github.com/greengate-erp/greengate-erp/internal/orders"
	"github.com/greengate-erp/greengate-erp/internal/pricing"
	"github.com/greengate-erp/greengate-erp/internal/procurement"
	"github.com/greengate-erp/greengate-erp/internal/shared"
	"github.com/greengate-erp/greengate-erp/internal/stock"
	"github.com/greengate-erp/greengate-erp/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	directoryRepo := directory.NewRepository(dbpool)
	directoryService := directory.NewService(directoryRepo, auditLogger)
	directoryHandler := directory.NewHandler(logger, directoryService)

	pricingRepo := pricing.NewRepository(dbpool)
	pricingService := pricing.NewService(pricingRepo, catalogService, directoryService)
	pricingHandler := pricing.NewHandler(logger, pricingService)

	summaryCache := orders.NewSummaryCache(redisClient, cfg.SummaryCacheTTL)
	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(ordersRepo, pricingService, catalogService, directoryService, summaryCache)
	ordersHandler := orders.NewHandler(logger, ordersService)

	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo)
	stockHandler := stock.NewHandler(logger, stockService)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(procurementRepo, ordersService, stockService, catalogService, pricingService, idempotencyStore)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CatalogHandler:     catalogHandler,
		DirectoryHandler:   directoryHandler,
		PricingHandler:     pricingHandler,
		OrdersHandler:      ordersHandler,
		StockHandler:       stockHandler,
		ProcurementHandler: procurementHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
