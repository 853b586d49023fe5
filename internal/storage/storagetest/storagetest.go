// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/shoe-market/internal/storage"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Run exercises b. Buckets named "alpha" and "beta" must start empty.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("insert get remove", func(t *testing.T) {
		kv := b.Bucket("alpha")

		_, ok, err := kv.Get(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, kv.Insert(ctx, "k1", []byte("v1")))
		got, ok, err := kv.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v1"), got)

		require.NoError(t, kv.Insert(ctx, "k1", []byte("v2")))
		removed, ok, err := kv.Remove(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v2"), removed)

		_, ok, err = kv.Remove(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("buckets are isolated", func(t *testing.T) {
		require.NoError(t, b.Bucket("alpha").Insert(ctx, "shared", []byte("a")))
		require.NoError(t, b.Bucket("beta").Insert(ctx, "shared", []byte("b")))

		got, ok, err := b.Bucket("beta").Get(ctx, "shared")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("b"), got)

		vals, err := b.Bucket("alpha").Values(ctx)
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("a")}, vals)

		_, _, err = b.Bucket("alpha").Remove(ctx, "shared")
		require.NoError(t, err)
		_, _, err = b.Bucket("beta").Remove(ctx, "shared")
		require.NoError(t, err)
	})

	t.Run("typed table", func(t *testing.T) {
		tbl := storage.NewTable[string, record](b.Bucket("alpha"), func(k string) string { return "rec/" + k })
		require.NoError(t, tbl.Insert(ctx, "a", record{Name: "a", Count: 1}))
		require.NoError(t, tbl.Insert(ctx, "b", record{Name: "b", Count: 2}))

		got, ok, err := tbl.Get(ctx, "b")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, record{Name: "b", Count: 2}, got)

		all, err := tbl.Values(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []record{{Name: "a", Count: 1}, {Name: "b", Count: 2}}, all)

		for _, k := range []string{"a", "b"} {
			_, ok, err := tbl.Remove(ctx, k)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})

	t.Run("concurrent remove has one winner", func(t *testing.T) {
		kv := b.Bucket("alpha")
		require.NoError(t, kv.Insert(ctx, "contended", []byte("x")))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := kv.Remove(ctx, "contended")
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("update replaces existing value", func(t *testing.T) {
		kv := b.Bucket("alpha")
		require.NoError(t, kv.Insert(ctx, "u1", []byte("a")))

		got, ok, err := kv.Update(ctx, "u1", func(cur []byte) ([]byte, error) {
			return append(cur, 'b'), nil
		})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("ab"), got)

		stored, _, err := kv.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []byte("ab"), stored)

		boom := errors.New("boom")
		_, _, err = kv.Update(ctx, "u1", func([]byte) ([]byte, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
		stored, _, err = kv.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []byte("ab"), stored, "a failed update writes nothing")

		_, _, err = kv.Remove(ctx, "u1")
		require.NoError(t, err)
	})

	t.Run("update of missing key does not create it", func(t *testing.T) {
		kv := b.Bucket("alpha")
		called := false
		_, ok, err := kv.Update(ctx, "ghost", func(cur []byte) ([]byte, error) {
			called = true
			return cur, nil
		})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, called)

		_, ok, err = kv.Get(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent updates lose nothing", func(t *testing.T) {
		tbl := storage.NewTable[string, record](b.Bucket("beta"), func(k string) string { return k })
		require.NoError(t, tbl.Insert(ctx, "counter", record{Name: "counter"}))

		const workers = 16
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := tbl.Update(ctx, "counter", func(r record) (record, error) {
					r.Count++
					return r, nil
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, ok, err := tbl.Get(ctx, "counter")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, workers, got.Count)

		_, _, err = tbl.Remove(ctx, "counter")
		require.NoError(t, err)
	})
}
