package data

import (
	"context"
	"time"

	"clipstash/internal/domain"
)

// Compile-time interface check
var _ domain.ClipRepository = (*CachedClipRepository)(nil)

// CachedClipRepository wraps the clip repository with a read-through cache.
// Every write invalidates the cached entry so the next read reloads it.
// Inside a transaction the invalidation waits for the commit; dropping the
// entry earlier lets a concurrent read cache the old row again.
type CachedClipRepository struct {
	repo  *clipRepo
	cache ClipCache
}

// NewCachedClipRepository creates a new cached repository wrapper.
func NewCachedClipRepository(repo *clipRepo, cache ClipCache) *CachedClipRepository {
	return &CachedClipRepository{
		repo:  repo,
		cache: cache,
	}
}

// Save persists a clip and invalidates its cache entry.
func (r *CachedClipRepository) Save(ctx context.Context, c *domain.Clip) error {
	if err := r.repo.Save(ctx, c); err != nil {
		return err
	}

	r.invalidate(ctx, c.ShortCode())
	return nil
}

// FindByShortCode retrieves a clip, checking cache first.
func (r *CachedClipRepository) FindByShortCode(ctx context.Context, code domain.ShortCode) (*domain.Clip, error) {
	// Try cache first
	if cached, err := r.cache.Get(ctx, code); err == nil && cached != nil {
		return cached, nil
	}

	// Cache miss, fetch from database
	c, err := r.repo.FindByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// Cache the result
	_ = r.cache.Set(ctx, c)
	return c, nil
}

// IncrementHits updates the stored count and drops the stale cache entry.
func (r *CachedClipRepository) IncrementHits(ctx context.Context, code domain.ShortCode, delta uint64) error {
	if err := r.repo.IncrementHits(ctx, code, delta); err != nil {
		return err
	}

	r.invalidate(ctx, code)
	return nil
}

// DeleteExpired removes expired clips from the database and the cache.
func (r *CachedClipRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	codes, n, err := r.repo.deleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	r.invalidate(ctx, codes...)
	return n, nil
}

func (r *CachedClipRepository) invalidate(ctx context.Context, codes ...domain.ShortCode) {
	if len(codes) == 0 {
		return
	}
	afterCommit(ctx, func(ctx context.Context) {
		_ = r.cache.Invalidate(ctx, codes...)
	})
}
