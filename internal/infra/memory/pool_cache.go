package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"maquiz-service/internal/app"
	"maquiz-service/internal/domain"
)

// PoolCache caches the active question pool per category with a TTL so every
// fallback sample does not rescan the backing store. Random sampling and text
// lookups pass straight through: randomness must stay fresh and text lookups
// are rare.
type PoolCache struct {
	inner app.QuestionSource
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewPoolCache(inner app.QuestionSource, ttl time.Duration) *PoolCache {
	return &PoolCache{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedPool),
	}
}

func (c *PoolCache) ListActive(ctx context.Context, category string) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[category]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(category, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[category]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		pool, err := c.inner.ListActive(ctx, category)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[category] = cachedPool{
			questions: pool,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
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

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
