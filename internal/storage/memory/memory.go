// Package memory is a process-local storage.Backend used for tests and
// single-node development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jcmexdev/shoe-market/internal/storage"
)

type Backend struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New() *Backend {
	return &Backend{buckets: make(map[string]*bucket)}
}

func (b *Backend) Bucket(name string) storage.KV {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bk, ok := b.buckets[name]; ok {
		return bk
	}
	bk := &bucket{data: make(map[string][]byte)}
	b.buckets[name] = bk
	return bk
}

func (b *Backend) Close() error { return nil }

type bucket struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (b *bucket) Insert(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), value...)
	return nil
}

func (b *bucket) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (b *bucket) Remove(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	delete(b.data, key)
	return v, true, nil
}

func (b *bucket) Update(_ context.Context, key string, fn storage.UpdateFunc) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	next, err := fn(append([]byte(nil), cur...))
	if err != nil {
		return nil, false, err
	}
	b.data[key] = append([]byte(nil), next...)
	return next, true, nil
}

// Values returns values in key order.
func (b *bucket) Values(_ context.Context) ([][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, append([]byte(nil), b.data[k]...))
	}
	return out, nil
}
