package assets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// QueueRepository describes persistence operations used by Queue.
type QueueRepository interface {
	ActiveJobExists(ctx context.Context, assetID uuid.UUID) (bool, error)
	InsertJob(ctx context.Context, job AssetJob) error
	SelectRunnable(ctx context.Context, limit int) ([]AssetJob, error)
	Claim(ctx context.Context, id uuid.UUID) (AssetJob, bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	ExpireStale(ctx context.Context, lease time.Duration) (int64, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetMedia(ctx context.Context, id uuid.UUID) (Media, error)
	SetMediaContent(ctx context.Context, id uuid.UUID, stored StoredAsset) error
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	SetDocumentContent(ctx context.Context, id uuid.UUID, stored StoredAsset) error
}

// DownloaderPort fetches one source URL and stores the bytes.
type DownloaderPort interface {
	Download(ctx context.Context, job AssetJob) (StoredAsset, error)
}

// QueueConfig tunes batch processing.
type QueueConfig struct {
	// Workers bounds concurrent downloads within one batch; defaults to 4.
	Workers int
	// ProcessingLease is how long a job may sit in PROCESSING before a
	// crashed worker is assumed and the job becomes retry-eligible.
	// Defaults to 10 minutes.
	ProcessingLease time.Duration
}

// Queue is the durable asset download queue. Multiple concurrent workers
// may call ProcessBatch; the atomic claim update is the only mutual
// exclusion required.
type Queue struct {
	repo       QueueRepository
	downloader DownloaderPort
	logger     *slog.Logger
	cfg        QueueConfig
}

// NewQueue constructs a Queue.
func NewQueue(repo QueueRepository, downloader DownloaderPort, logger *slog.Logger, cfg QueueConfig) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ProcessingLease <= 0 {
		cfg.ProcessingLease = 10 * time.Minute
	}
	return &Queue{repo: repo, downloader: downloader, logger: logger, cfg: cfg}
}

// Enqueue inserts a PENDING job unless an active job for the asset
// already exists; the duplicate enqueue is a no-op.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, assetID, productID uuid.UUID, sourceURL string) (AssetJob, bool, error) {
	if assetID == uuid.Nil || sourceURL == "" {
		return AssetJob{}, false, fmt.Errorf("%w: asset id and source url required", ErrValidation)
	}
	switch jobType {
	case JobMediaDownload, JobDocumentDownload:
	default:
		return AssetJob{}, false, fmt.Errorf("%w: unknown job type %q", ErrValidation, jobType)
	}

	exists, err := q.repo.ActiveJobExists(ctx, assetID)
	if err != nil {
		return AssetJob{}, false, err
	}
	if exists {
		return AssetJob{}, false, nil
	}
	job := AssetJob{
		ID:        uuid.New(),
		Type:      jobType,
		AssetID:   assetID,
		ProductID: productID,
		SourceURL: sourceURL,
		Status:    JobStatusPending,
	}
	if err := q.repo.InsertJob(ctx, job); err != nil {
		return AssetJob{}, false, err
	}
	return job, true, nil
}

// ProcessBatch claims and processes up to batchSize eligible jobs.
// Failures are recorded on the job and counted; they are never raised out
// of the batch.
func (q *Queue) ProcessBatch(ctx context.Context, batchSize int) (BatchResult, error) {
	if batchSize <= 0 {
		batchSize = 20
	}

	if expired, err := q.repo.ExpireStale(ctx, q.cfg.ProcessingLease); err != nil {
		q.logger.Warn("expire stale jobs", slog.Any("error", err))
	} else if expired > 0 {
		q.logger.Info("expired stale processing jobs", slog.Int64("count", expired))
	}

	jobs, err := q.repo.SelectRunnable(ctx, batchSize)
	if err != nil {
		return BatchResult{}, err
	}

	var (
		mu     sync.Mutex
		result BatchResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			claimed, ok, err := q.repo.Claim(ctx, job.ID)
			if err != nil {
				q.logger.Error("claim job", slog.String("job_id", job.ID.String()), slog.Any("error", err))
				return nil
			}
			if !ok {
				// Another worker holds it.
				return nil
			}
			outcome := q.processJob(ctx, claimed)
			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case outcome != nil:
				result.Errors++
			case claimed.Type == JobMediaDownload:
				result.MediaDownloaded++
			default:
				result.DocumentsDownloaded++
			}
			return nil
		})
	}
	_ = g.Wait()
	return result, nil
}

func (q *Queue) processJob(ctx context.Context, job AssetJob) error {
	err := q.runJob(ctx, job)
	if err != nil {
		q.logger.Warn("asset job failed",
			slog.String("job_id", job.ID.String()),
			slog.String("type", string(job.Type)),
			slog.Int("attempt", job.Attempts),
			slog.Any("error", err))
		if markErr := q.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			q.logger.Error("mark job failed", slog.String("job_id", job.ID.String()), slog.Any("error", markErr))
		}
		return err
	}
	if err := q.repo.MarkCompleted(ctx, job.ID); err != nil {
		q.logger.Error("mark job completed", slog.String("job_id", job.ID.String()), slog.Any("error", err))
	}
	return nil
}

func (q *Queue) runJob(ctx context.Context, job AssetJob) error {
	stored, err := q.downloader.Download(ctx, job)
	if err != nil {
		return err
	}
	switch job.Type {
	case JobMediaDownload:
		return q.repo.SetMediaContent(ctx, job.AssetID, stored)
	case JobDocumentDownload:
		return q.repo.SetDocumentContent(ctx, job.AssetID, stored)
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrValidation, job.Type)
	}
}

// Cleanup deletes COMPLETED jobs older than daysOld days. Storage hygiene
// only; correctness does not depend on it.
func (q *Queue) Cleanup(ctx context.Context, daysOld int) (int64, error) {
	if daysOld <= 0 {
		daysOld = 30
	}
	cutoff := time.Now().AddDate(0, 0, -daysOld)
	return q.repo.DeleteCompletedBefore(ctx, cutoff)
}
