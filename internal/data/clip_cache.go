package data

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"clipstash/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const clipCachePrefix = "clip:"

// ClipCache defines the interface for clip caching operations.
// Implementations should handle cache misses gracefully by returning nil, nil.
type ClipCache interface {
	// Get retrieves a clip from cache by its short code.
	// Returns nil, nil if the clip is not in cache (cache miss).
	Get(ctx context.Context, code domain.ShortCode) (*domain.Clip, error)

	// Set stores a clip in the cache.
	Set(ctx context.Context, c *domain.Clip) error

	// Invalidate removes clips from the cache.
	Invalidate(ctx context.Context, codes ...domain.ShortCode) error
}

// Compile-time interface checks
var (
	_ ClipCache = (*RedisClipCache)(nil)
	_ ClipCache = (*noopClipCache)(nil)
)

// RedisClipCache implements ClipCache using Redis.
type RedisClipCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *log.Helper
}

// NewClipCache creates a Redis-based clip cache.
// Returns a no-op cache if redis is not configured.
func NewClipCache(data *Data, logger log.Logger) ClipCache {
	if data.rdb == nil {
		return &noopClipCache{}
	}
	return NewRedisClipCache(data.rdb, data.cacheTTL, logger)
}

// NewRedisClipCache creates a cache on rdb with entries living for ttl.
func NewRedisClipCache(rdb *redis.Client, ttl time.Duration, logger log.Logger) *RedisClipCache {
	return &RedisClipCache{
		rdb: rdb,
		ttl: ttl,
		log: log.NewHelper(log.With(logger, "module", "data/cache")),
	}
}

// cachedClip is the serialization format for cached clips.
type cachedClip struct {
	ID        string     `json:"id"`
	ShortCode string     `json:"shortcode"`
	Content   string     `json:"content"`
	Title     string     `json:"title,omitempty"`
	Posted    time.Time  `json:"posted"`
	Expires   *time.Time `json:"expires,omitempty"`
	Password  string     `json:"password,omitempty"`
	Hits      uint64     `json:"hits"`
}

func cacheKey(code domain.ShortCode) string {
	return clipCachePrefix + code.String()
}

// Get retrieves a clip from Redis cache.
func (c *RedisClipCache) Get(ctx context.Context, code domain.ShortCode) (*domain.Clip, error) {
	data, err := c.rdb.Get(ctx, cacheKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		c.log.WithContext(ctx).Warnf("Failed to get clip from cache: %v", err)
		return nil, nil // Treat errors as cache miss
	}

	var cached cachedClip
	if err := json.Unmarshal(data, &cached); err != nil {
		c.log.WithContext(ctx).Warnf("Failed to unmarshal cached clip: %v", err)
		return nil, nil
	}

	shortCode, err := domain.NewShortCode(cached.ShortCode)
	if err != nil {
		return nil, nil
	}

	return domain.ReconstructClip(
		cached.ID,
		shortCode,
		cached.Content,
		cached.Title,
		cached.Posted,
		cached.Expires,
		cached.Password,
		cached.Hits,
	), nil
}

// Set stores a clip in Redis cache.
func (c *RedisClipCache) Set(ctx context.Context, clip *domain.Clip) error {
	cached := cachedClip{
		ID:        clip.ID(),
		ShortCode: clip.ShortCode().String(),
		Content:   clip.Content(),
		Title:     clip.Title(),
		Posted:    clip.Posted(),
		Expires:   clip.Expires(),
		Password:  clip.Password(),
		Hits:      clip.Hits(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		c.log.WithContext(ctx).Warnf("Failed to marshal clip for cache: %v", err)
		return nil // Don't fail the operation due to cache errors
	}

	if err := c.rdb.Set(ctx, cacheKey(clip.ShortCode()), data, c.ttl).Err(); err != nil {
		c.log.WithContext(ctx).Warnf("Failed to cache clip: %v", err)
	}
	return nil
}

// Invalidate removes clips from Redis cache.
func (c *RedisClipCache) Invalidate(ctx context.Context, codes ...domain.ShortCode) error {
	if len(codes) == 0 {
		return nil
	}
	keys := lo.Map(codes, func(code domain.ShortCode, _ int) string {
		return cacheKey(code)
	})
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.WithContext(ctx).Warnf("Failed to invalidate clip cache: %v", err)
		return err
	}
	return nil
}

// noopClipCache is used when redis is not configured.
type noopClipCache struct{}

func (n *noopClipCache) Get(context.Context, domain.ShortCode) (*domain.Clip, error) {
	return nil, nil
}

func (n *noopClipCache) Set(context.Context, *domain.Clip) error {
	return nil
}

func (n *noopClipCache) Invalidate(context.Context, ...domain.ShortCode) error {
	return nil
}
