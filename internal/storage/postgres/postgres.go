// Package postgres stores marketplace buckets in a single kv_entries table.
// Remove is DELETE ... RETURNING, which Postgres executes atomically per row.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcmexdev/shoe-market/internal/storage"
	"github.com/jcmexdev/shoe-market/internal/storage/postgres/migrations"
)

type Backend struct {
	pool *pgxpool.Pool
}

// Open connects, pings and applies migrations.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Backend{pool: pool}, nil
}

// NewBackend wraps an existing, migrated pool.
func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

func (b *Backend) Bucket(name string) storage.KV {
	return &bucket{pool: b.pool, name: name}
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

type bucket struct {
	pool *pgxpool.Pool
	name string
}

func (b *bucket) Insert(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO kv_entries (bucket, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (bucket, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := b.pool.Exec(ctx, stmt, b.name, key, value); err != nil {
		return fmt.Errorf("insert %s/%s: %w", b.name, key, err)
	}
	return nil
}

func (b *bucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const query = `SELECT value FROM kv_entries WHERE bucket = $1 AND key = $2`
	return b.scanOne(ctx, "get", query, key)
}

func (b *bucket) Remove(ctx context.Context, key string) ([]byte, bool, error) {
	const stmt = `DELETE FROM kv_entries WHERE bucket = $1 AND key = $2 RETURNING value`
	return b.scanOne(ctx, "remove", stmt, key)
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent updates and
// removes of the same key wait for this transaction.
func (b *bucket) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, bool, error) {
	const (
		query = `SELECT value FROM kv_entries WHERE bucket = $1 AND key = $2 FOR UPDATE`
		stmt  = `UPDATE kv_entries SET value = $3, updated_at = NOW() WHERE bucket = $1 AND key = $2`
	)

	var (
		updated []byte
		found   bool
		fnErr   error
	)
	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		var cur []byte
		err := tx.QueryRow(ctx, query, b.name, key).Scan(&cur)
		if errors.Is(err, pgx.ErrNoRows) {
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
		if _, err := tx.Exec(ctx, stmt, b.name, key, next); err != nil {
			return err
		}
		updated, found = next, true
		return nil
	})
	if fnErr != nil {
		return nil, false, fnErr
	}
	if err != nil {
		return nil, false, fmt.Errorf("update %s/%s: %w", b.name, key, err)
	}
	return updated, found, nil
}

func (b *bucket) Values(ctx context.Context) ([][]byte, error) {
	const query = `SELECT value FROM kv_entries WHERE bucket = $1 ORDER BY key`

	rows, err := b.pool.Query(ctx, query, b.name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.name, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.name, err)
	}
	return out, nil
}

func (b *bucket) scanOne(ctx context.Context, op, sql, key string) ([]byte, bool, error) {
	var v []byte
	err := b.pool.QueryRow(ctx, sql, b.name, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s %s/%s: %w", op, b.name, key, err)
	}
	return v, true, nil
}
