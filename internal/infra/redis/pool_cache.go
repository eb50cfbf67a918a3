package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"maquiz-service/internal/app"
	"maquiz-service/internal/domain"
)

// PoolCache caches the active question pool in Redis (one JSON blob per
// category key) and falls back to the wrapped source on a miss.
// Keys: questions:pool:<category> (questions:pool:all when unfiltered).
// SampleRandom and TextsByID pass through to the source: sampling must stay
// fresh, and text lookups are rare and cheap.
type PoolCache struct {
	client *redis.Client
	inner  app.QuestionSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewPoolCache(client *redis.Client, inner app.QuestionSource, ttl time.Duration) *PoolCache {
	return &PoolCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PoolCache) ListActive(ctx context.Context, category string) ([]domain.Question, error) {
	key := c.poolKey(category)

	if cached, ok := c.fetch(ctx, key); ok {
		return cached, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, ok := c.fetch(ctx, key); ok {
			return cached, nil
		}

		pool, err := c.inner.ListActive(ctx, category)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(pool); err == nil {
			// best-effort write; a failed SET just means a rescan next time
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *PoolCache) SampleRandom(ctx context.Context, count int, category string) ([]domain.Question, error) {
	return c.inner.SampleRandom(ctx, count, category)
}

func (c *PoolCache) TextsByID(ctx context.Context, ids []string) (map[string]string, error) {
	return c.inner.TextsByID(ctx, ids)
}

func (c *PoolCache) fetch(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, false
	}
	return pool, true
}

func (c *PoolCache) poolKey(category string) string {
	if category == "" {
		return "questions:pool:all"
	}
	return "questions:pool:" + category
}

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
