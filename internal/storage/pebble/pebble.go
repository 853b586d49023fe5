// Package pebble is an embedded, single-process storage.Backend.
//
// Keys are laid out as "<bucket>/<key>". Pebble has no compare-and-swap, so
// every write (Insert, Remove, Update) is serialised by a mutex shared by all
// buckets of one Backend; the database must not be opened by a second process.
package pebble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/jcmexdev/shoe-market/internal/storage"
)

type Backend struct {
	db *pebble.DB
	mu sync.Mutex
}

func Open(dir string) (*Backend, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false,
	})
	if err != nil {
		return nil, fmt.Errorf("pebble: open %q: %w", dir, err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Bucket(name string) storage.KV {
	return &bucket{backend: b, prefix: name + "/"}
}

func (b *Backend) Close() error {
	return b.db.Close()
}

type bucket struct {
	backend *Backend
	prefix  string
}

func (b *bucket) keyFor(key string) []byte {
	return []byte(b.prefix + key)
}

func (b *bucket) Insert(_ context.Context, key string, value []byte) error {
	b.backend.mu.Lock()
	defer b.backend.mu.Unlock()

	if err := b.backend.db.Set(b.keyFor(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("pebble: set %q: %w", b.prefix+key, err)
	}
	return nil
}

func (b *bucket) Get(_ context.Context, key string) ([]byte, bool, error) {
	return b.get(key)
}

func (b *bucket) get(key string) ([]byte, bool, error) {
	val, closer, err := b.backend.db.Get(b.keyFor(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pebble: get %q: %w", b.prefix+key, err)
	}
	defer closer.Close()
	return append([]byte(nil), val...), true, nil
}

func (b *bucket) Remove(_ context.Context, key string) ([]byte, bool, error) {
	b.backend.mu.Lock()
	defer b.backend.mu.Unlock()

	val, ok, err := b.get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := b.backend.db.Delete(b.keyFor(key), pebble.Sync); err != nil {
		return nil, false, fmt.Errorf("pebble: delete %q: %w", b.prefix+key, err)
	}
	return val, true, nil
}

func (b *bucket) Update(_ context.Context, key string, fn storage.UpdateFunc) ([]byte, bool, error) {
	b.backend.mu.Lock()
	defer b.backend.mu.Unlock()

	cur, ok, err := b.get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, false, err
	}
	if err := b.backend.db.Set(b.keyFor(key), next, pebble.Sync); err != nil {
		return nil, false, fmt.Errorf("pebble: set %q: %w", b.prefix+key, err)
	}
	return next, true, nil
}

func (b *bucket) Values(_ context.Context) ([][]byte, error) {
	// '0' is the byte after '/', so the upper bound closes the prefix range.
	upper := []byte(b.prefix[:len(b.prefix)-1] + "0")
	iter, err := b.backend.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(b.prefix),
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("pebble: iter %q: %w", b.prefix, err)
	}
	defer iter.Close()

	var out [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, append([]byte(nil), iter.Value()...))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebble: iter %q: %w", b.prefix, err)
	}
	return out, nil
}
