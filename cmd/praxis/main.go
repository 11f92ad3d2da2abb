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

	"github.com/praxis-erp/praxis-erp/internal/app"
	"github.com/praxis-erp/praxis-erp/internal/assets"
	"github.com/praxis-erp/praxis-erp/internal/catalog"
	"github.com/praxis-erp/praxis-erp/internal/enrich"
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
	} else {
		logger.Info("enrichment disabled, no base url configured")
	}

	catalogService := catalog.NewService(catalogRepo, matcher, enricher, store, auditLogger, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	catalogHandler := catalog.NewHandler(logger, catalogService, jobClient, metrics, cfg.MaxUploadBytes)
	assetsHandler := assets.NewHandler(logger, assetRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalogHandler,
		AssetsHandler:  assetsHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
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
