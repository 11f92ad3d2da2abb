package assets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists asset jobs and asset records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobColumns = `id, type, asset_id, product_id, source_url, status, attempts, COALESCE(last_error, ''), processed_at, created_at`

// ActiveJobExists reports whether a PENDING or PROCESSING job already
// targets the asset.
func (r *Repository) ActiveJobExists(ctx context.Context, assetID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM asset_jobs WHERE asset_id = $1 AND status IN ('PENDING', 'PROCESSING'))`, assetID).Scan(&exists)
	return exists, err
}

// InsertJob inserts a PENDING job.
func (r *Repository) InsertJob(ctx context.Context, job AssetJob) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO asset_jobs (id, type, asset_id, product_id, source_url, status, attempts, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		job.ID, string(job.Type), job.AssetID, job.ProductID, job.SourceURL, string(job.Status), job.Attempts)
	return err
}

// SelectRunnable returns up to limit jobs eligible for processing,
// / oldest first: PENDING, or FAILED below the attempts ceiling.
func (r *Repository) SelectRunnable(ctx context.Context, limit int) ([]AssetJob, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM asset_jobs
WHERE status = 'PENDING' OR (status = 'FAILED' AND attempts < $1)
ORDER BY created_at ASC
LIMIT $2`, MaxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []AssetJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Claim atomically flips one eligible job to PROCESSING and increments
// attempts. The conditional update is the queue's sole lock: a second
// worker claiming the same job sees zero rows and skips it.
func (r *Repository) Claim(ctx context.Context, id uuid.UUID) (AssetJob, bool, error) {
	row := r.pool.QueryRow(ctx, `UPDATE asset_jobs
SET status = 'PROCESSING', attempts = attempts + 1, claimed_at = NOW()
WHERE id = $1 AND (status = 'PENDING' OR (status = 'FAILED' AND attempts < $2))
RETURNING `+jobColumns, id, MaxAttempts)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AssetJob{}, false, nil
		}
		return AssetJob{}, false, err
	}
	return job, true, nil
}

// MarkCompleted records success.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE asset_jobs SET status = 'COMPLETED', last_error = NULL, processed_at = NOW()
WHERE id = $1 AND status = 'PROCESSING'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failure; the job stays retry-eligible below the
// attempts ceiling.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE asset_jobs SET status = 'FAILED', last_error = $1, processed_at = NOW()
WHERE id = $2 AND status = 'PROCESSING'`, truncateError(lastError), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireStale fails PROCESSING jobs whose lease ran out, making them
// retry-eligible again after a worker crash.
func (r *Repository) ExpireStale(ctx context.Context, lease time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE asset_jobs SET status = 'FAILED', last_error = 'processing lease expired'
WHERE status = 'PROCESSING' AND claimed_at < NOW() - $1::interval`, lease.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteCompletedBefore purges COMPLETED jobs older than the cutoff.
func (r *Repository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM asset_jobs WHERE status = 'COMPLETED' AND processed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetJob fetches one job.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (AssetJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM asset_jobs WHERE id = $1`, id)
	return scanJob(row)
}

const mediaColumns = `id, product_id, source_url, COALESCE(storage_key, ''), COALESCE(filename, ''), COALESCE(mime_type, ''), COALESCE(file_size, 0), downloaded, created_at, updated_at`

// CreateMedia inserts a media record without stored content.
func (r *Repository) CreateMedia(ctx context.Context, media Media) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO media (id, product_id, source_url, downloaded, created_at, updated_at)
VALUES ($1, $2, $3, FALSE, NOW(), NOW())`, media.ID, media.ProductID, media.SourceURL)
	return err
}

// GetMedia fetches one media record.
func (r *Repository) GetMedia(ctx context.Context, id uuid.UUID) (Media, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id)
	var m Media
	err := row.Scan(&m.ID, &m.ProductID, &m.SourceURL, &m.StorageKey, &m.Filename, &m.MimeType, &m.FileSize, &m.Downloaded, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Media{}, ErrNotFound
		}
		return Media{}, err
	}
	return m, nil
}

// SetMediaContent records the stored object on the media row.
func (r *Repository) SetMediaContent(ctx context.Context, id uuid.UUID, stored StoredAsset) error {
	tag, err := r.pool.Exec(ctx, `UPDATE media SET storage_key = $1, filename = $2, mime_type = $3, file_size = $4, downloaded = TRUE, updated_at = NOW()
WHERE id = $5`, stored.StorageKey, stored.Filename, stored.MimeType, stored.FileSize, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateDocument inserts a document record without stored content.
func (r *Repository) CreateDocument(ctx context.Context, doc Document) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO documents (id, product_id, source_url, downloaded, created_at, updated_at)
VALUES ($1, $2, $3, FALSE, NOW(), NOW())`, doc.ID, doc.ProductID, doc.SourceURL)
	return err
}

// GetDocument fetches one document record.
func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+mediaColumns+` FROM documents WHERE id = $1`, id)
	var d Document
	err := row.Scan(&d.ID, &d.ProductID, &d.SourceURL, &d.StorageKey, &d.Filename, &d.MimeType, &d.FileSize, &d.Downloaded, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return d, nil
}

// SetDocumentContent records the stored object on the document row.
func (r *Repository) SetDocumentContent(ctx context.Context, id uuid.UUID, stored StoredAsset) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET storage_key = $1, filename = $2, mime_type = $3, file_size = $4, downloaded = TRUE, updated_at = NOW()
WHERE id = $5`, stored.StorageKey, stored.Filename, stored.MimeType, stored.FileSize, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (AssetJob, error) {
	var job AssetJob
	var processedAt *time.Time
	err := row.Scan(&job.ID, &job.Type, &job.AssetID, &job.ProductID, &job.SourceURL,
		&job.Status, &job.Attempts, &job.LastError, &processedAt, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AssetJob{}, ErrNotFound
		}
		return AssetJob{}, err
	}
	job.ProcessedAt = processedAt
	return job, nil
}

func truncateError(message string) string {
	const maxLen = 500
	if len(message) > maxLen {
		return message[:maxLen]
	}
	return message
}
