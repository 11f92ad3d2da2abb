package assets

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job types.
type JobType string

const (
	JobMediaDownload    JobType = "MEDIA_DOWNLOAD"
	JobDocumentDownload JobType = "DOCUMENT_DOWNLOAD"
)

// Job lifecycle statuses.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// MaxAttempts is the retry ceiling; a FAILED job at the ceiling is terminal.
const MaxAttempts = 3

// AssetJob is one durable download work item. At most one active
// (PENDING/PROCESSING) job exists per asset.
type AssetJob struct {
	ID          uuid.UUID
	Type        JobType
	AssetID     uuid.UUID
	ProductID   uuid.UUID
	SourceURL   string
	Status      JobStatus
	Attempts    int
	LastError   string
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// Media is an image or similar asset referenced by a product.
type Media struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	SourceURL  string    `json:"source_url"`
	StorageKey string    `json:"storage_key,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	FileSize   int64     `json:"file_size"`
	Downloaded bool      `json:"downloaded"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Document is a datasheet, certificate or similar file referenced by a
// product.
type Document struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	SourceURL  string    `json:"source_url"`
	StorageKey string    `json:"storage_key,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	FileSize   int64     `json:"file_size"`
	Downloaded bool      `json:"downloaded"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StoredAsset is the downloader's result for one job.
type StoredAsset struct {
	StorageKey string
	Filename   string
	MimeType   string
	FileSize   int64
}

// BatchResult aggregates one ProcessBatch invocation. Failures are
// counted, never raised.
type BatchResult struct {
	Processed           int `json:"processed"`
	Errors              int `json:"errors"`
	MediaDownloaded     int `json:"media_downloaded"`
	DocumentsDownloaded int `json:"documents_downloaded"`
}

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("assets: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("assets: invalid input")
)
