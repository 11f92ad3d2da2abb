package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/praxis-erp/praxis-erp/internal/catalog"
	jobmetrics "github.com/praxis-erp/praxis-erp/internal/jobs"
	"github.com/praxis-erp/praxis-erp/internal/observability"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CatalogImportJob processes uploads that were accepted asynchronously.
type CatalogImportJob struct {
	Catalog    *catalog.Service
	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics
	Logger     *slog.Logger
}

// NewCatalogImportJob wires dependencies for the import handler.
func NewCatalogImportJob(svc *catalog.Service, metrics *observability.Metrics, logger *slog.Logger) *CatalogImportJob {
	return &CatalogImportJob{Catalog: svc, Metrics: metrics, Logger: logger}
}

// Handle processes TaskCatalogImport tasks.
func (j *CatalogImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Catalog == nil {
		return errors.New("catalog import: handler not configured")
	}
	var payload CatalogImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("upload_id", payload.UploadID.String()))
	logger.Info("starting catalog import")

	tracker := j.metrics().Track(TaskCatalogImport)
	start := time.Now()
	result, err := j.Catalog.ProcessUpload(ctx, payload.UploadID, payload.Options)
	catalog.ObserveImport(j.Metrics, result, time.Since(start))
	_ = tracker.End(err)
	if err != nil {
		// The upload record already carries the failure; retrying would hit
		// the already-finalised status guard.
		if errors.Is(err, catalog.ErrValidation) || errors.Is(err, catalog.ErrNotFound) {
			logger.Warn("catalog import rejected", slog.Any("error", err))
			return asynq.SkipRetry
		}
		logger.Error("catalog import failed", slog.Any("error", err))
		return asynq.SkipRetry
	}

	logger.Info("catalog import finished",
		slog.String("status", string(result.Status)),
		slog.Int("rows", result.RowCount),
		slog.Int("success", result.SuccessCount),
		slog.Int("failed", result.FailedCount),
		slog.Int("review", result.ReviewCount))
	return nil
}

func (j *CatalogImportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *CatalogImportJob) metrics() *jobmetrics.Metrics {
	if j.JobMetrics != nil {
		return j.JobMetrics
	}
	return defaultJobMetrics
}
