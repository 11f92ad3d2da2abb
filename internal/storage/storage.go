// Package storage abstracts where downloaded assets and raw uploads are
// kept. Providers are pluggable: local filesystem for single-node
// deployments, an in-memory implementation for tests.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the storage key does not exist.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey indicates an unsafe or empty storage key.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// UploadInput describes an object to store.
type UploadInput struct {
	Folder      string
	Filename    string
	ContentType string
}

// Object describes a stored object.
type Object struct {
	StorageKey  string
	URL         string
	FileSize    int64
	ContentType string
}

// Provider stores and retrieves binary objects by key.
type Provider interface {
	Upload(ctx context.Context, data []byte, input UploadInput) (Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
