package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/praxis-erp/praxis-erp/internal/catalog"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogImport processes a previously uploaded supplier catalog.
	TaskCatalogImport = "catalog:import"
	// TaskAssetProcess drains a batch of runnable asset download jobs.
	TaskAssetProcess = "assets:process"
	// TaskAssetCleanup purges old completed asset jobs.
	TaskAssetCleanup = "assets:cleanup"
)

// CatalogImportPayload identifies the upload to process and its options.
type CatalogImportPayload struct {
	UploadID uuid.UUID             `json:"upload_id"`
	Options  catalog.ImportOptions `json:"options"`
}

// NewCatalogImportTask constructs an Asynq task for one prepared upload.
func NewCatalogImportTask(payload CatalogImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogImport, data, asynq.Queue(QueueDefault)), nil
}

// AssetProcessPayload contains options for one processing sweep.
type AssetProcessPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewAssetProcessTask builds a new asset processing task.
func NewAssetProcessTask(batchSize int) (*asynq.Task, error) {
	data, err := json.Marshal(AssetProcessPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssetProcess, data, asynq.Queue(QueueDefault)), nil
}

// AssetCleanupPayload contains options for the retention sweep.
type AssetCleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAssetCleanupTask builds a new cleanup task.
func NewAssetCleanupTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AssetCleanupPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssetCleanup, data, asynq.Queue(QueueDefault)), nil
}
