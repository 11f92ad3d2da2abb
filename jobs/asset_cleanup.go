package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/praxis-erp/praxis-erp/internal/assets"
	jobmetrics "github.com/praxis-erp/praxis-erp/internal/jobs"
)

// AssetCleanupJob purges completed download jobs past the retention window.
type AssetCleanupJob struct {
	Queue      *assets.Queue
	JobMetrics *jobmetrics.Metrics
	Logger     *slog.Logger
}

// NewAssetCleanupJob wires dependencies for the cleanup handler.
func NewAssetCleanupJob(queue *assets.Queue, logger *slog.Logger) *AssetCleanupJob {
	return &AssetCleanupJob{Queue: queue, Logger: logger}
}

// Handle processes TaskAssetCleanup tasks.
func (j *AssetCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Queue == nil {
		return errors.New("asset cleanup: handler not configured")
	}
	var payload AssetCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAssetCleanup)
	purged, err := j.Queue.Cleanup(ctx, payload.RetentionDays)
	_ = tracker.End(err)
	if err != nil {
		j.logger().Error("asset cleanup failed", slog.Any("error", err))
		return err
	}
	if purged > 0 {
		j.logger().Info("asset cleanup finished", slog.Int64("purged", purged))
	}
	return nil
}

func (j *AssetCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *AssetCleanupJob) metrics() *jobmetrics.Metrics {
	if j.JobMetrics != nil {
		return j.JobMetrics
	}
	return defaultJobMetrics
}
