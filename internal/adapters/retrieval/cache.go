package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/logger"
	"github.com/okian/examintel/pkg/metrics"
)

const (
	cacheKeyPrefix  = "query:"
	defaultCacheTTL = time.Hour
)

// Retriever is the contract decorated by CachedRetriever.
type Retriever interface {
	Retrieve(ctx context.Context, subject, query string, topK int) ([]model.RetrievalHit, error)
}

// Cache stores raw response bytes by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache implements Cache on a go-redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and pings it.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

// Get returns the cached bytes. A missing key is not an error.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value with a TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// CacheOption configures a CachedRetriever.
type CacheOption func(*CachedRetriever)

// WithTTL sets how long results stay cached.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedRetriever) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNamespace scopes keys, typically by user id.
func WithNamespace(ns string) CacheOption {
	return func(c *CachedRetriever) {
		c.namespace = ns
	}
}

// WithCacheLogger sets a custom logger.
func WithCacheLogger(l logger.Logger) CacheOption {
	return func(c *CachedRetriever) {
		if l != nil {
			c.logger = l
		}
	}
}

// CachedRetriever serves repeated queries from a cache. Cache failures never
// fail a retrieval.
type CachedRetriever struct {
	next      Retriever
	cache     Cache
	ttl       time.Duration
	namespace string
	logger    logger.Logger
}

// NewCachedRetriever wraps next with cache.
func NewCachedRetriever(next Retriever, cache Cache, opts ...CacheOption) *CachedRetriever {
	c := &CachedRetriever{
		next:   next,
		cache:  cache,
		ttl:    defaultCacheTTL,
		logger: logger.Get().Named("retrieval-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retrieve checks the cache before calling the wrapped retriever. Only
// non-empty results are stored.
func (c *CachedRetriever) Retrieve(ctx context.Context, subject, query string, topK int) ([]model.RetrievalHit, error) {
	key := CacheKey(c.namespace, subject, query, topK)

	raw, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		c.logger.Warn(ctx, "cache get failed", logger.String("key", key), logger.Error(err))
	case ok:
		var hits []model.RetrievalHit
		if err := json.Unmarshal(raw, &hits); err == nil {
			metrics.RecordCacheLookup("hit")
			return hits, nil
		}
		metrics.RecordCacheLookup("error")
		c.logger.Warn(ctx, "cache entry corrupt", logger.String("key", key))
	default:
		metrics.RecordCacheLookup("miss")
	}

	hits, err := c.next.Retrieve(ctx, subject, query, topK)
	if err != nil || len(hits) == 0 {
		return hits, err
	}

	if raw, err := json.Marshal(hits); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn(ctx, "cache set failed", logger.String("key", key), logger.Error(err))
		}
	}
	return hits, nil
}

// CacheKey hashes the query parameters into a stable key.
func CacheKey(namespace, subject, query string, topK int) string {
	payload, _ := json.Marshal(struct {
		Namespace string `json:"namespace"`
		Query     string `json:"query"`
		Subject   string `json:"subject"`
		TopK      int    `json:"top_k"`
	}{namespace, query, subject, topK})
	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
