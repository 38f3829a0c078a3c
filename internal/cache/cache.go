// Package cache layers a Redis fast tier over the durable store tier
// for generated content.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"contentforge/internal/store"
	"contentforge/pkg/domain"
)

// Base TTL per content type. Evergreen pages live long, social posts
// go stale fast.
var baseTTL = map[domain.ContentType]time.Duration{
	domain.ContentPost:    24 * time.Hour,
	domain.ContentPage:    7 * 24 * time.Hour,
	domain.ContentProduct: 12 * time.Hour,
	domain.ContentEmail:   time.Hour,
	domain.ContentSocial:  30 * time.Minute,
}

const defaultTTL = 24 * time.Hour

// TTLFor returns the retention for a content type, scaled by prompt
// length. Long prompts are expensive to regenerate so they cache
// twice as long; trivial prompts half as long.
func TTLFor(contentType domain.ContentType, promptLen int) time.Duration {
	ttl, ok := baseTTL[contentType]
	if !ok {
		ttl = defaultTTL
	}
	switch {
	case promptLen > 500:
		ttl *= 2
	case promptLen < 100:
		ttl /= 2
	}
	return ttl
}

// Cache is the two-tier generation cache. The Redis tier serves hot
// keys; the store tier survives restarts and feeds promotions.
type Cache struct {
	redisClient *redis.Client
	repo        store.CacheRepository
	prefix      string
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a cache. The Redis client may be nil, in which case only
// the durable tier is used.
func New(redisClient *redis.Client, repo store.CacheRepository, prefix string, logger *slog.Logger) *Cache {
	if prefix == "" {
		prefix = "contentforge:cache"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		redisClient: redisClient,
		repo:        repo,
		prefix:      prefix,
		logger:      logger,
		now:         time.Now,
	}
}

func (c *Cache) redisKey(key string) string {
	return c.prefix + ":" + key
}

// Get returns the cached result for key, consulting the fast tier
// first and promoting durable hits into it.
func (c *Cache) Get(ctx context.Context, key string) (*domain.GenerationResult, bool) {
	if c.redisClient != nil {
		raw, err := c.redisClient.Get(ctx, c.redisKey(key)).Result()
		if err == nil {
			result, decodeErr := decodeEnvelope([]byte(raw))
			if decodeErr == nil {
				if touchErr := c.repo.TouchCacheHit(key); touchErr != nil {
					c.logger.Warn("cache hit count update failed", "error", touchErr)
				}
				return result, true
			}
			c.logger.Warn("corrupt fast-tier cache entry", "key", key, "error", decodeErr)
		} else if err != redis.Nil {
			c.logger.Warn("cache fast tier unavailable", "error", err)
		}
	}

	entry, found, err := c.repo.GetCacheEntry(key, c.now())
	if err != nil {
		c.logger.Warn("cache durable tier read failed", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	raw, err := unpack(entry.Payload, entry.Compressed)
	if err != nil {
		c.logger.Warn("corrupt durable cache entry", "key", key, "error", err)
		return nil, false
	}
	var result domain.GenerationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("corrupt durable cache entry", "key", key, "error", err)
		return nil, false
	}
	if err := c.repo.TouchCacheHit(key); err != nil {
		c.logger.Warn("cache hit count update failed", "error", err)
	}
	c.promote(ctx, key, entry)
	return &result, true
}

// promote copies a durable hit into the fast tier with its remaining
// lifetime.
func (c *Cache) promote(ctx context.Context, key string, entry store.CacheEntry) {
	if c.redisClient == nil {
		return
	}
	remaining := entry.ExpiresAt.Sub(c.now())
	if remaining <= 0 {
		return
	}
	raw, err := json.Marshal(envelope{Compressed: entry.Compressed, Data: entry.Payload})
	if err != nil {
		return
	}
	if err := c.redisClient.Set(ctx, c.redisKey(key), raw, remaining).Err(); err != nil {
		c.logger.Warn("cache promotion failed", "error", err)
	}
}

// Put stores a result in both tiers with the content-type TTL.
func (c *Cache) Put(ctx context.Context, key string, req domain.GenerationRequest, result domain.GenerationResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cached result: %w", err)
	}
	ttl := TTLFor(req.ContentType, len(req.Prompt))
	payload, compressed := pack(raw)
	now := c.now().UTC()
	if err := c.repo.PutCacheEntry(store.CacheEntry{
		Key:         key,
		ContentType: req.ContentType,
		Payload:     payload,
		Compressed:  compressed,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("write durable cache: %w", err)
	}
	if c.redisClient != nil {
		wire, err := json.Marshal(envelope{Compressed: compressed, Data: payload})
		if err == nil {
			if err := c.redisClient.Set(ctx, c.redisKey(key), wire, ttl).Err(); err != nil {
				c.logger.Warn("cache fast tier write failed", "error", err)
			}
		}
	}
	return nil
}

// Delete removes one key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.redisClient != nil {
		if err := c.redisClient.Del(ctx, c.redisKey(key)).Err(); err != nil {
			c.logger.Warn("cache fast tier delete failed", "error", err)
		}
	}
	return c.repo.DeleteCacheEntry(key)
}

// Clear flushes entries, optionally limited to one content type. The
// fast tier is dropped wholesale; stale keys there age out via TTL.
func (c *Cache) Clear(ctx context.Context, contentType domain.ContentType) (int64, error) {
	n, err := c.repo.ClearCache(contentType)
	if err != nil {
		return 0, err
	}
	if c.redisClient != nil {
		iter := c.redisClient.Scan(ctx, 0, c.prefix+":*", 500).Iterator()
		for iter.Next(ctx) {
			if err := c.redisClient.Del(ctx, iter.Val()).Err(); err != nil {
				c.logger.Warn("cache fast tier delete failed", "error", err)
			}
		}
		if err := iter.Err(); err != nil {
			c.logger.Warn("cache fast tier scan failed", "error", err)
		}
	}
	return n, nil
}

// Sweep drops expired durable entries. Run periodically.
func (c *Cache) Sweep() (int64, error) {
	return c.repo.PurgeExpiredCache(c.now())
}

// Stats reports durable-tier counters.
func (c *Cache) Stats() (store.CacheStats, error) {
	return c.repo.CacheStats(c.now())
}

func decodeEnvelope(raw []byte) (*domain.GenerationResult, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	data, err := unpack(env.Data, env.Compressed)
	if err != nil {
		return nil, err
	}
	var result domain.GenerationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
