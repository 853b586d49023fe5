// Package redis stores marketplace buckets in Redis. Keys are namespaced as
// "<service>:<bucket>:<key>"; Remove is a single GETDEL so concurrent
// removers can never both see the value. Update is an optimistic
// WATCH/MULTI/EXEC transaction retried on conflict.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/shoe-market/internal/storage"
)

const (
	scanBatch         = 256
	maxUpdateAttempts = 64
)

type Backend struct {
	client      *redis.Client
	serviceName string
}

func New(addr, serviceName string) *Backend {
	return &Backend{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		serviceName: serviceName,
	}
}

// Ping checks connectivity; call it once at startup.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (b *Backend) Bucket(name string) storage.KV {
	return &bucket{client: b.client, prefix: b.GenerateKey(name, "")}
}

func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) GenerateKey(bucket, key string) string {
	return fmt.Sprintf("%s:%s:%s", b.serviceName, bucket, key)
}

type bucket struct {
	client *redis.Client
	prefix string
}

func (b *bucket) Insert(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", b.prefix+key, err)
	}
	return nil
}

func (b *bucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get %q: %w", b.prefix+key, err)
	}
	return v, true, nil
}

func (b *bucket) Remove(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.client.GetDel(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: getdel %q: %w", b.prefix+key, err)
	}
	return v, true, nil
}

func (b *bucket) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, bool, error) {
	k := b.prefix + key
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var (
			updated []byte
			found   bool
			fnErr   error
		)
		err := b.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, k).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			next, err := fn(cur)
			if err != nil {
				fnErr = err
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, next, 0)
				return nil
			})
			if err != nil {
				return err
			}
			updated, found = next, true
			return nil
		}, k)

		switch {
		case fnErr != nil:
			return nil, false, fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err != nil:
			return nil, false, fmt.Errorf("redis: update %q: %w", k, err)
		}
		return updated, found, nil
	}
	return nil, false, fmt.Errorf("redis: update %q: gave up after %d conflicting attempts", k, maxUpdateAttempts)
}

// Values scans the bucket prefix. Keys removed between SCAN and MGET are
// skipped.
func (b *bucket) Values(ctx context.Context) ([][]byte, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan %q: %w", b.prefix, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	vals, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget %q: %w", b.prefix, err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, []byte(s))
	}
	return out, nil
}
