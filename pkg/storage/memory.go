package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	modified    time.Time
	contentType string
	data        []byte
}

// MemoryStorage is an in-process Storage for tests and local development.
// Its URLs are memory:// links and are not served.
type MemoryStorage struct {
	objects map[string]memObject
	maxSize int64
	mu      sync.RWMutex
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemory() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memObject), maxSize: DefaultMaxUploadSize}
}

func (m *MemoryStorage) List(_ context.Context, prefix string) ([]Object, error) {
	if prefix != "" {
		prefix = FolderKey(prefix)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var folders, files []Object
	for _, key := range slices.Sorted(maps.Keys(m.objects)) {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || rest == "" {
			continue
		}
		if dir, _, nested := strings.Cut(rest, "/"); nested {
			if !seen[dir] {
				seen[dir] = true
				folders = append(folders, Object{Key: prefix + dir + "/", Name: dir, Folder: true})
			}
			continue
		}
		obj := m.objects[key]
		files = append(files, Object{
			Key:         key,
			Name:        rest,
			ContentType: obj.contentType,
			Size:        int64(len(obj.data)),
			ModifiedAt:  obj.modified,
		})
	}
	return append(folders, files...), nil
}

func (m *MemoryStorage) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if size > m.maxSize {
		return nil, ErrFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(r, m.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if int64(len(data)) > m.maxSize {
		return nil, ErrFileTooLarge
	}

	now := time.Now()
	m.mu.Lock()
	m.objects[key] = memObject{data: data, contentType: contentType, modified: now}
	m.mu.Unlock()

	return &Object{
		Key:         key,
		Name:        BaseName(key),
		ContentType: contentType,
		Size:        int64(len(data)),
		Folder:      strings.HasSuffix(key, "/"),
		ModifiedAt:  now,
	}, nil
}

func (m *MemoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) Head(_ context.Context, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Key:         key,
		Name:        BaseName(key),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		Folder:      strings.HasSuffix(key, "/"),
		ModifiedAt:  obj.modified,
	}, nil
}

func (m *MemoryStorage) Copy(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[src]
	if !ok {
		return ErrNotFound
	}
	obj.data = bytes.Clone(obj.data)
	m.objects[dst] = obj
	return nil
}

// Delete is idempotent, like S3 DeleteObject.
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) DeletePrefix(_ context.Context, prefix string) (int, error) {
	prefix = FolderKey(prefix)
	if prefix == "/" {
		return 0, ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) URL(_ context.Context, key string, expiry time.Duration, downloadName string) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}

	q := url.Values{}
	q.Set("expires", time.Now().Add(expiry).UTC().Format(time.RFC3339))
	if downloadName != "" {
		q.Set("download", downloadName)
	}
	return "memory://" + key + "?" + q.Encode(), nil
}
