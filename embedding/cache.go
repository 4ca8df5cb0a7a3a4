package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 7 * 24 * time.Hour

// Cache stores computed vectors in Redis keyed by a digest of the input
// text. Descriptions rarely change, so a week-long TTL keeps recompute
// passes cheap.
type Cache struct {
	client *redis.Client
}

func NewCache(ctx context.Context, url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("embedding: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("embedding: ping redis: %w", err)
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (c *Cache) Get(ctx context.Context, text string) ([]float64, bool) {
	raw, err := c.client.Get(ctx, cacheKey(text)).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *Cache) Set(ctx context.Context, text string, vec []float64) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	// A cache write failure only costs a recompute later.
	c.client.Set(ctx, cacheKey(text), raw, cacheTTL)
}

// CachedClient wraps a Client with read-through caching.
type CachedClient struct {
	inner Client
	cache *Cache
}

func NewCachedClient(inner Client, cache *Cache) *CachedClient {
	return &CachedClient{inner: inner, cache: cache}
}

func (c *CachedClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if vec, ok := c.cache.Get(ctx, text); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, text, vec)
	return vec, nil
}
