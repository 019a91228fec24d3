package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/greengate-erp/greengate-erp/internal/app"
	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/directory"
	"github.com/greengate-erp/greengate-erp/internal/orders"
	"github.com/greengate-erp/greengate-erp/internal/pricing"
	"github.com/greengate-erp/greengate-erp/internal/shared"
	"github.com/greengate-erp/greengate-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	directoryService := directory.NewService(directory.NewRepository(pool), auditLogger)
	pricingService := pricing.NewService(pricing.NewRepository(pool), catalogService, directoryService)

	summaryCache := orders.NewSummaryCache(redisClient, cfg.SummaryCacheTTL)
	ordersService := orders.NewService(orders.NewRepository(pool), pricingService, catalogService, directoryService, summaryCache)

	warmupJob := jobs.NewSummaryWarmupJob(ordersService, logger)
	pruneJob := jobs.NewHistoryPruneJob(pricingService, idempotencyStore, cfg.PriceHistoryRetentionDays, logger)

	warmupTask, err := jobs.NewSummaryWarmupTask(jobs.SummaryWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	pruneTask, err := jobs.NewHistoryPruneTask(jobs.HistoryPrunePayload{})
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSummaryWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskHistoryPrune, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			// Warm the summary before the first cutoff of the day.
			{Spec: "30 5 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
