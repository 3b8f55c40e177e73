package testutil

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// MemStorage is an in-memory object store holding any number of buckets
type MemStorage struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte
	opened  int
}

// NewMemStorage returns an empty store
func NewMemStorage() *MemStorage {
	return &MemStorage{objects: make(map[string]map[string][]byte)}
}

// Bucket returns a client for bucket. Its methods match the object storage
// drivers' bucket interface.
func (m *MemStorage) Bucket(bucket string) *MemBucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
	return &MemBucket{store: m, name: bucket}
}

// Opened returns how many clients have been handed out
func (m *MemStorage) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Put stores an object
func (m *MemStorage) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string][]byte)
	}
	m.objects[bucket][key] = append([]byte(nil), data...)
}

// Get returns an object's content
func (m *MemStorage) Get(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket][key]
	return data, ok
}

// Keys returns every key in bucket, sorted
func (m *MemStorage) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects[bucket]))
	for k := range m.objects[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MemBucket is one bucket of a MemStorage
type MemBucket struct {
	store *MemStorage
	name  string
}

func (b *MemBucket) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, k := range b.store.Keys(b.name) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (b *MemBucket) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := b.store.Get(b.name, key)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *MemBucket) Upload(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.store.Put(b.name, key, data)
	return nil
}

func (b *MemBucket) Delete(_ context.Context, key string) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if _, ok := b.store.objects[b.name][key]; !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "object %s not found", key)
	}
	delete(b.store.objects[b.name], key)
	return nil
}

func (b *MemBucket) Close() error {
	return nil
}
