package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores objects as files under a base directory. Keys are
// `folder/uuid-filename` relative paths.
type Local struct {
	baseDir string
	baseURL string
}

// NewLocal constructs a filesystem provider rooted at baseDir.
func NewLocal(baseDir, baseURL string) (*Local, error) {
	if baseDir == "" {
		return nil, errors.New("storage: base directory required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base dir: %w", err)
	}
	return &Local{baseDir: baseDir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload writes the object and returns its key and metadata.
func (l *Local) Upload(ctx context.Context, data []byte, input UploadInput) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	filename := sanitizeFilename(input.Filename)
	key := path.Join(sanitizeFolder(input.Folder), uuid.NewString()+"-"+filename)
	full := filepath.Join(l.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return Object{}, fmt.Errorf("storage: write: %w", err)
	}
	return Object{
		StorageKey:  key,
		URL:         l.baseURL + "/" + key,
		FileSize:    int64(len(data)),
		ContentType: input.ContentType,
	}, nil
}

// Get reads an object back by key.
func (l *Local) Get(ctx context.Context, key string) ([]byte, error) {
	full, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read: %w", err)
	}
	return data, nil
}

// Delete removes an object. Missing keys are not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	full, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete: %w", err)
	}
	return nil
}

// Exists reports whether the key is present.
func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	full, err := l.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *Local) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.baseDir, filepath.FromSlash(key)), nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func sanitizeFolder(folder string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" || strings.Contains(folder, "..") {
		return "misc"
	}
	return folder
}
