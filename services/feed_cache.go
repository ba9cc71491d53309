package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/overstreetbilly/snapgram/models"

	"github.com/go-redis/redis/v8"
)

const (
	RECENT_FEED_KEY_PREFIX = "recent_posts:"
	// множество всех ключей кеша, по нему идёт инвалидация
	RECENT_FEED_KEYS = "recent_posts:keys"
	// счётчик инвалидаций; запись в кеш сверяется с ним
	RECENT_FEED_GENERATION = "recent_posts:generation"
	DEFAULT_FEED_CACHE_TTL = time.Minute
)

var errStaleFeed = errors.New("recent feed changed while it was being read")

// FeedCache кеширует результат ListRecent.
// Generation читается до запроса к БД; SetRecent пишет, только если с тех пор
// не было Invalidate, иначе запись молча пропускается.
type FeedCache interface {
	GetRecent(ctx context.Context, limit int) ([]models.Post, bool)
	Generation(ctx context.Context) (int64, error)
	SetRecent(ctx context.Context, limit int, generation int64, posts []models.Post) error
	Invalidate(ctx context.Context) error
}

type RedisFeedCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFeedCache(client *redis.Client, ttl time.Duration) *RedisFeedCache {
	if ttl <= 0 {
		ttl = DEFAULT_FEED_CACHE_TTL
	}
	return &RedisFeedCache{client: client, ttl: ttl}
}

func (c *RedisFeedCache) GetRecent(ctx context.Context, limit int) ([]models.Post, bool) {
	data, err := c.client.Get(ctx, c.key(limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("WARN: recent feed cache read failed: %v", err)
		}
		return nil, false
	}

	var posts []models.Post
	if err = json.Unmarshal(data, &posts); err != nil {
		log.Printf("WARN: recent feed cache entry is corrupted: %v", err)
		return nil, false
	}
	return posts, true
}

func (c *RedisFeedCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.client.Get(ctx, RECENT_FEED_GENERATION).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read recent feed generation: %w", err)
	}
	return generation, nil
}

func (c *RedisFeedCache) SetRecent(ctx context.Context, limit int, generation int64, posts []models.Post) error {
	data, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("failed to marshal recent feed: %w", err)
	}

	key := c.key(limit)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, RECENT_FEED_GENERATION).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != generation {
			return errStaleFeed
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			pipe.SAdd(ctx, RECENT_FEED_KEYS, key)
			return nil
		})
		return err
	}, RECENT_FEED_GENERATION)

	if errors.Is(err, errStaleFeed) || errors.Is(err, redis.TxFailedErr) {
		log.Printf("DEBUG: skipped caching recent feed %d: %v", limit, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cache recent feed: %w", err)
	}
	return nil
}

// Invalidate удаляет все закешированные варианты ленты и сдвигает поколение
func (c *RedisFeedCache) Invalidate(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, RECENT_FEED_KEYS).Result()
	if err != nil {
		return fmt.Errorf("failed to read recent feed keys: %w", err)
	}
	keys = append(keys, RECENT_FEED_KEYS)

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, RECENT_FEED_GENERATION)
	pipe.Del(ctx, keys...)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate recent feed: %w", err)
	}
	return nil
}

func (c *RedisFeedCache) key(limit int) string {
	return fmt.Sprintf("%s%d", RECENT_FEED_KEY_PREFIX, limit)
}
