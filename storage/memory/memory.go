// Package memory provides an in-memory storage repository, used as the
// default backend and as a test double for the persistent ones.
package memory

import (
	"sync"

	"github.com/keygate/storage"
)

// Repository implements storage.Repository with in-process maps.
type Repository struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{buckets: make(map[string]map[string][]byte)}
}

func (r *Repository) Put(bucket, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		r.buckets[bucket] = b
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	b[key] = cp
	return nil
}

func (r *Repository) Get(bucket, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buckets[bucket]
	if !ok {
		return nil, storage.ErrNotFound
	}
	v, ok := b[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (r *Repository) Delete(bucket, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[bucket]; ok {
		delete(b, key)
	}
	return nil
}

func (r *Repository) Keys(bucket string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buckets[bucket]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	return keys, nil
}

func (r *Repository) Close() error { return nil }
