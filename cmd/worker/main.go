package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/praxis-erp/praxis-erp/internal/app"
	"github.com/praxis-erp/praxis-erp/internal/assets"
	"github.com/praxis-erp/praxis-erp/internal/catalog"
	"github.com/praxis-erp/praxis-erp/internal/enrich"
	jobmetrics "github.com/praxis-erp/praxis-erp/internal/jobs"
	"github.com/praxis-erp/praxis-erp/internal/observability"
	"github.com/praxis-erp/praxis-erp/internal/platform/cache"
	"github.com/praxis-erp/praxis-erp/internal/platform/db"
	"github.com/praxis-erp/praxis-erp/internal/shared"
	"github.com/praxis-erp/praxis-erp/internal/storage"
	"github.com/praxis-erp/praxis-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, enrichment cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, err := storage.NewLocal(cfg.StorageDir, cfg.StorageBaseURL)
	if err != nil {
		logger.Error("init storage", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	assetRepo := assets.NewRepository(pool)
	downloader := assets.NewDownloader(store, assets.DownloaderConfig{
		Timeout:  cfg.DownloadTimeout,
		MaxBytes: cfg.DownloadMaxBytes,
	})
	assetQueue := assets.NewQueue(assetRepo, downloader, logger, assets.QueueConfig{
		Workers:         cfg.AssetWorkers,
		ProcessingLease: cfg.AssetProcessingLease,
	})

	catalogRepo := catalog.NewRepository(pool)
	matcher := catalog.NewMatcher(catalogRepo, catalog.MatcherConfig{})

	var enricher catalog.EnrichmentPort
	if cfg.EnrichBaseURL != "" {
		lookupClient, err := enrich.NewClient(enrich.ClientConfig{
			BaseURL: cfg.EnrichBaseURL,
			APIKey:  cfg.EnrichAPIKey,
			Timeout: cfg.EnrichTimeout,
		})
		if err != nil {
			logger.Error("init enrichment client", slog.Any("error", err))
			os.Exit(1)
		}
		lookup := enrich.NewCache(redisClient, lookupClient, cfg.EnrichCacheTTL)
		enricher = enrich.NewService(lookup, catalogRepo, assetRepo, assetQueue, logger)
	}

	catalogService := catalog.NewService(catalogRepo, matcher, enricher, store, auditLogger, logger)

	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	importJob := jobs.NewCatalogImportJob(catalogService, metrics, logger)
	importJob.JobMetrics = jobMetrics
	processJob := jobs.NewAssetProcessJob(assetQueue, metrics, logger)
	processJob.JobMetrics = jobMetrics
	cleanupJob := jobs.NewAssetCleanupJob(assetQueue, logger)
	cleanupJob.JobMetrics = jobMetrics

	processTask, err := jobs.NewAssetProcessTask(cfg.AssetBatchSize)
	if err != nil {
		logger.Error("build asset process task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewAssetCleanupTask(cfg.AssetRetentionDays)
	if err != nil {
		logger.Error("build asset cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCatalogImport, Handler: importJob.Handle},
			{Type: jobs.TaskAssetProcess, Handler: processJob.Handle},
			{Type: jobs.TaskAssetCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "* * * * *", Task: processTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
			{Spec: "45 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
