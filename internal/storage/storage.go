// Package storage defines the durable key-value contract the marketplace
// stores are built on.
//
// Every backend must make Remove an atomic get-and-delete: when two callers
// race to remove the same key, at most one of them observes the value.
// Update is the matching read-modify-write: fn sees the value as stored and
// its result is written only if nothing else changed or deleted the key in
// between. Nothing else in the system takes locks, so order completion,
// expiry and item counters rely on these two primitives.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// UpdateFunc maps the current value of a key to its replacement. An error
// aborts the update and is returned to the caller unchanged. Backends with
// optimistic retries may call it more than once.
type UpdateFunc func(current []byte) ([]byte, error)

// KV is a single named bucket of byte values.
type KV interface {
	Insert(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Remove(ctx context.Context, key string) ([]byte, bool, error)
	// Update atomically replaces an existing value. A missing key reports
	// false and fn is not called.
	Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, bool, error)
	Values(ctx context.Context) ([][]byte, error)
}

// Backend hands out buckets that share one underlying connection.
type Backend interface {
	Bucket(name string) KV
	Close() error
}

// Table is a typed, JSON-encoded view over a KV bucket.
type Table[K any, V any] struct {
	kv  KV
	key func(K) string
}

func NewTable[K any, V any](kv KV, key func(K) string) *Table[K, V] {
	return &Table[K, V]{kv: kv, key: key}
}

func (t *Table[K, V]) Insert(ctx context.Context, k K, v V) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", t.key(k), err)
	}
	return t.kv.Insert(ctx, t.key(k), b)
}

func (t *Table[K, V]) Get(ctx context.Context, k K) (V, bool, error) {
	b, ok, err := t.kv.Get(ctx, t.key(k))
	if err != nil || !ok {
		var zero V
		return zero, false, err
	}
	return t.decode(k, b)
}

func (t *Table[K, V]) Remove(ctx context.Context, k K) (V, bool, error) {
	b, ok, err := t.kv.Remove(ctx, t.key(k))
	if err != nil || !ok {
		var zero V
		return zero, false, err
	}
	return t.decode(k, b)
}

// Update decodes the stored value, applies fn and stores the result
// atomically. Errors returned by fn pass through unwrapped.
func (t *Table[K, V]) Update(ctx context.Context, k K, fn func(V) (V, error)) (V, bool, error) {
	var zero V
	b, ok, err := t.kv.Update(ctx, t.key(k), func(cur []byte) ([]byte, error) {
		var v V
		if err := json.Unmarshal(cur, &v); err != nil {
			return nil, fmt.Errorf("storage: decode %q: %w", t.key(k), err)
		}
		next, err := fn(v)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("storage: encode %q: %w", t.key(k), err)
		}
		return out, nil
	})
	if err != nil || !ok {
		return zero, false, err
	}
	return t.decode(k, b)
}

func (t *Table[K, V]) Values(ctx context.Context) ([]V, error) {
	raw, err := t.kv.Values(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(raw))
	for _, b := range raw {
		var v V
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("storage: decode value: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (t *Table[K, V]) decode(k K, b []byte) (V, bool, error) {
	var v V
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, fmt.Errorf("storage: decode %q: %w", t.key(k), err)
	}
	return v, true, nil
}
