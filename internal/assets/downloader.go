package assets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/praxis-erp/praxis-erp/internal/storage"
)

// DownloaderConfig bounds one download.
type DownloaderConfig struct {
	// Timeout caps the whole request; defaults to 15s. A slow external
	// host must not stall a batch.
	Timeout time.Duration
	// MaxBytes caps the response body; defaults to 32 MiB.
	MaxBytes int64
}

// Downloader fetches asset bytes over HTTP and persists them through the
// storage provider.
type Downloader struct {
	client *http.Client
	store  storage.Provider
	cfg    DownloaderConfig
}

// NewDownloader constructs a Downloader.
func NewDownloader(store storage.Provider, cfg DownloaderConfig) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 32 << 20
	}
	return &Downloader{
		client: &http.Client{Timeout: cfg.Timeout},
		store:  store,
		cfg:    cfg,
	}
}

// Download fetches the job's source URL and uploads the bytes.
func (d *Downloader) Download(ctx context.Context, job AssetJob) (StoredAsset, error) {
	parsed, err := url.Parse(job.SourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return StoredAsset{}, fmt.Errorf("%w: unsupported source url %q", ErrValidation, job.SourceURL)
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.SourceURL, nil)
	if err != nil {
		return StoredAsset{}, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return StoredAsset{}, fmt.Errorf("assets: fetch %s: %w", job.SourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StoredAsset{}, fmt.Errorf("assets: fetch %s: status %d", job.SourceURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes+1))
	if err != nil {
		return StoredAsset{}, fmt.Errorf("assets: read body: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxBytes {
		return StoredAsset{}, fmt.Errorf("assets: body exceeds %d bytes", d.cfg.MaxBytes)
	}
	if len(data) == 0 {
		return StoredAsset{}, fmt.Errorf("assets: empty body from %s", job.SourceURL)
	}

	contentType := detectContentType(resp.Header.Get("Content-Type"), data)
	filename := assetFilename(parsed, resp.Header.Get("Content-Disposition"), contentType)

	folder := "media"
	if job.Type == JobDocumentDownload {
		folder = "documents"
	}
	obj, err := d.store.Upload(ctx, data, storage.UploadInput{
		Folder:      folder + "/" + job.ProductID.String(),
		Filename:    filename,
		ContentType: contentType,
	})
	if err != nil {
		return StoredAsset{}, fmt.Errorf("assets: store: %w", err)
	}
	return StoredAsset{
		StorageKey: obj.StorageKey,
		Filename:   filename,
		MimeType:   contentType,
		FileSize:   obj.FileSize,
	}, nil
}

// detectContentType prefers sniffed content over the server header, which
// suppliers frequently get wrong.
func detectContentType(header string, data []byte) string {
	detected := mimetype.Detect(data)
	if detected != nil && detected.String() != "application/octet-stream" {
		return detected.String()
	}
	if header != "" {
		if parsed, _, err := mime.ParseMediaType(header); err == nil {
			return parsed
		}
	}
	return "application/octet-stream"
}

func assetFilename(u *url.URL, contentDisposition, contentType string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(name)
			}
		}
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "asset"
	}
	if path.Ext(name) == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			name += exts[0]
		}
	}
	return name
}
