package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/praxis-erp/praxis-erp/internal/assets"
	jobmetrics "github.com/praxis-erp/praxis-erp/internal/jobs"
	"github.com/praxis-erp/praxis-erp/internal/observability"
)

// AssetProcessJob drains runnable asset download jobs in batches.
type AssetProcessJob struct {
	Queue      *assets.Queue
	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics
	Logger     *slog.Logger
}

// NewAssetProcessJob wires dependencies for the processing handler.
func NewAssetProcessJob(queue *assets.Queue, metrics *observability.Metrics, logger *slog.Logger) *AssetProcessJob {
	return &AssetProcessJob{Queue: queue, Metrics: metrics, Logger: logger}
}

// Handle processes TaskAssetProcess tasks.
func (j *AssetProcessJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Queue == nil {
		return errors.New("asset process: handler not configured")
	}
	var payload AssetProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAssetProcess)
	result, err := j.Queue.ProcessBatch(ctx, payload.BatchSize)
	_ = tracker.End(err)
	if err != nil {
		j.logger().Error("asset batch failed", slog.Any("error", err))
		return err
	}

	succeeded := result.MediaDownloaded + result.DocumentsDownloaded
	j.Metrics.ObserveAssetJobs("success", succeeded)
	j.Metrics.ObserveAssetJobs("failed", result.Errors)

	if result.Processed > 0 {
		j.logger().Info("asset batch finished",
			slog.Int("processed", result.Processed),
			slog.Int("media", result.MediaDownloaded),
			slog.Int("documents", result.DocumentsDownloaded),
			slog.Int("failed", result.Errors))
	}
	return nil
}

func (j *AssetProcessJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *AssetProcessJob) metrics() *jobmetrics.Metrics {
	if j.JobMetrics != nil {
		return j.JobMetrics
	}
	return defaultJobMetrics
}
