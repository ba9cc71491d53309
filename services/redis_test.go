package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/overstreetbilly/snapgram/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis подключается к Redis из REDIS_ADDR; без него тест пропускается
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedisSessionStore(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisSessionStore(client)
	ctx := context.Background()

	accountID := gofakeit.UUID()
	first := &models.AccountSession{ID: gofakeit.UUID(), AccountID: accountID, ExpiresAt: time.Now().Add(time.Hour)}
	second := &models.AccountSession{ID: gofakeit.UUID(), AccountID: accountID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, accountID, got.AccountID)

	ttl, err := client.TTL(ctx, SESSION_KEY_PREFIX+first.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, store.Delete(ctx, first.ID))
	_, err = store.Get(ctx, first.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.DeleteByAccount(ctx, accountID))
	_, err = store.Get(ctx, second.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	expired := &models.AccountSession{ID: gofakeit.UUID(), AccountID: accountID, ExpiresAt: time.Now().Add(-time.Second)}
	assert.Equal(t, KindValidation, KindOf(store.Save(ctx, expired)))
}

func TestRedisFeedCache(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewRedisFeedCache(client, time.Minute)
	ctx := context.Background()

	_, ok := cache.GetRecent(ctx, 20)
	assert.False(t, ok)

	posts := []models.Post{{ID: "p1", Caption: "one", Tags: models.StringArray{"a"}, Likes: models.StringArray{}}}
	generation, err := cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.SetRecent(ctx, 20, generation, posts))
	require.NoError(t, cache.SetRecent(ctx, 5, generation, posts))

	cached, ok := cache.GetRecent(ctx, 20)
	require.True(t, ok)
	assert.Equal(t, "one", cached[0].Caption)
	assert.Equal(t, models.StringArray{"a"}, cached[0].Tags)

	require.NoError(t, cache.Invalidate(ctx))
	_, ok = cache.GetRecent(ctx, 20)
	assert.False(t, ok)
	_, ok = cache.GetRecent(ctx, 5)
	assert.False(t, ok)
}

func TestRedisFeedCacheSkipsStaleGeneration(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewRedisFeedCache(client, time.Minute)
	ctx := context.Background()
	posts := []models.Post{{ID: "p1", Caption: "old", Tags: models.StringArray{}, Likes: models.StringArray{}}}

	stale, err := cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))

	require.NoError(t, cache.SetRecent(ctx, 20, stale, posts))
	_, ok := cache.GetRecent(ctx, 20)
	assert.False(t, ok, "write with an outdated generation is dropped")

	current, err := cache.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, stale+1, current)
	require.NoError(t, cache.SetRecent(ctx, 20, current, posts))
	cached, ok := cache.GetRecent(ctx, 20)
	require.True(t, ok)
	assert.Equal(t, "old", cached[0].Caption)
}

type flakyDeleter struct {
	failures int
	calls    chan string
}

func (d *flakyDeleter) Delete(ctx context.Context, fileID string) error {
	d.calls <- fileID
	if d.failures > 0 {
		d.failures--
		return errBoom
	}
	return nil
}

func TestCleanupQueueRetries(t *testing.T) {
	client := setupTestRedis(t)
	deleter := &flakyDeleter{failures: 1, calls: make(chan string, 10)}
	queue := NewCleanupQueue(client, deleter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Discard(ctx, "file-1"))
	queue.StartWorkers(ctx, 1)

	for attempt := 0; attempt < 2; attempt++ {
		select {
		case id := <-deleter.calls:
			assert.Equal(t, "file-1", id)
		case <-time.After(10 * time.Second):
			t.Fatalf("cleanup attempt %d did not happen", attempt+1)
		}
	}

	length, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, length)
}
