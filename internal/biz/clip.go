package biz

import (
	"context"
	"errors"
	"time"

	"clipstash/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(NewClipUsecase)

// maxCodeAttempts bounds retries when a generated short code collides.
const maxCodeAttempts = 3

// HitRecorder counts a view of a clip without blocking the request.
type HitRecorder interface {
	RecordHit(code domain.ShortCode, delta uint64)
}

// ClipUsecase handles clip business logic.
type ClipUsecase struct {
	repo domain.ClipRepository
	uow  domain.UnitOfWork
	hits HitRecorder
	log  *log.Helper
	now  func() time.Time
}

// NewClipUsecase creates a new ClipUsecase.
func NewClipUsecase(repo domain.ClipRepository, uow domain.UnitOfWork, hits HitRecorder, logger log.Logger) *ClipUsecase {
	return &ClipUsecase{
		repo: repo,
		uow:  uow,
		hits: hits,
		log:  log.NewHelper(log.With(logger, "module", "biz/clip")),
		now:  time.Now,
	}
}

// CreateClip stores a new clip under a freshly generated short code.
func (uc *ClipUsecase) CreateClip(ctx context.Context, content, title, password string, expires *time.Time) (*domain.Clip, error) {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		clip, err := domain.NewClip(content, title, password, expires)
		if err != nil {
			return nil, err
		}

		err = uc.uow.Do(ctx, func(ctx context.Context) error {
			return uc.repo.Save(ctx, clip)
		})
		if err == nil {
			uc.log.WithContext(ctx).Infof("clip created: %s", clip.ShortCode())
			return clip, nil
		}
		if !errors.Is(err, domain.ErrShortCodeExists) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// GetClip returns the clip stored under code and records one hit for it.
// An expired clip yields domain.ErrClipExpired even before the sweeper
// has removed it.
func (uc *ClipUsecase) GetClip(ctx context.Context, code, password string) (*domain.Clip, error) {
	clip, err := uc.find(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := clip.Unlock(password); err != nil {
		return nil, err
	}

	uc.hits.RecordHit(clip.ShortCode(), 1)
	return clip, nil
}

// UpdateClip replaces the content of an existing clip. The clip's current
// password must be supplied.
func (uc *ClipUsecase) UpdateClip(ctx context.Context, code, currentPassword, content, title, password string, expires *time.Time) (*domain.Clip, error) {
	clip, err := uc.find(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := clip.Unlock(currentPassword); err != nil {
		return nil, err
	}
	if err := clip.Update(content, title, password, expires); err != nil {
		return nil, err
	}

	err = uc.uow.Do(ctx, func(ctx context.Context) error {
		return uc.repo.Save(ctx, clip)
	})
	if err != nil {
		return nil, err
	}
	return clip, nil
}

func (uc *ClipUsecase) find(ctx context.Context, code string) (*domain.Clip, error) {
	sc, err := domain.NewShortCode(code)
	if err != nil {
		return nil, err
	}

	clip, err := uc.repo.FindByShortCode(ctx, sc)
	if err != nil {
		return nil, err
	}
	if clip.IsExpired(uc.now()) {
		return nil, domain.ErrClipExpired
	}
	return clip, nil
}
