package storage

import (
	"context"
	"path"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process provider used in tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemory constructs an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Upload stores the object under a generated key.
func (m *Memory) Upload(ctx context.Context, data []byte, input UploadInput) (Object, error) {
	key := path.Join(sanitizeFolder(input.Folder), uuid.NewString()+"-"+sanitizeFilename(input.Filename))
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = buf
	return Object{
		StorageKey:  key,
		URL:         "memory://" + key,
		FileSize:    int64(len(data)),
		ContentType: input.ContentType,
	}, nil
}

// Get returns a stored object.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes an object. Missing keys are not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Exists reports whether the key is present.
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
