package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/shoe-market/internal/orderlog"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_SaveAndHistory(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	const memo = ^uint64(0) - 1
	base := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	events := []orderlog.Event{
		orderlog.EventCreated,
		orderlog.EventVerificationFailed,
		orderlog.EventCompleted,
	}
	for i, ev := range events {
		require.NoError(t, repo.Save(ctx, &orderlog.Entry{
			CorrelationID: memo,
			ItemID:        "item-1",
			Event:         ev,
			Principal:     "buyer",
			RecordedAt:    base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.Save(ctx, &orderlog.Entry{
		CorrelationID: 1,
		Event:         orderlog.EventExpired,
		RecordedAt:    base,
	}))

	history, err := repo.History(ctx, memo)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, e := range history {
		assert.Equal(t, events[i], e.Event)
		assert.Equal(t, uint64(memo), e.CorrelationID)
		assert.True(t, e.RecordedAt.Equal(base.Add(time.Duration(i)*time.Second)))
	}

	latest, err := repo.Latest(ctx, memo)
	require.NoError(t, err)
	assert.Equal(t, orderlog.EventCompleted, latest.Event)
}

func TestRepository_LatestMissing(t *testing.T) {
	_, err := openTestRepo(t).Latest(context.Background(), 12345)
	assert.Error(t, err)
}
