package domain

import (
	"context"
	"time"
)

// ClipRepository defines the interface for clip persistence operations.
// This interface is defined in the domain layer and implemented in the data layer.
type ClipRepository interface {
	// Save persists a clip. A clip without an ID is inserted and receives one,
	// otherwise the mutable fields of the stored row are updated.
	Save(ctx context.Context, clip *Clip) error

	// FindByShortCode retrieves a clip by its short code.
	// Returns ErrClipNotFound if there is no such clip.
	FindByShortCode(ctx context.Context, code ShortCode) (*Clip, error)

	// IncrementHits atomically adds delta to the stored hit count.
	// Returns ErrClipNotFound if no row matched.
	IncrementHits(ctx context.Context, code ShortCode, delta uint64) error

	// DeleteExpired removes every clip whose expiry is at or before now and
	// returns how many were deleted. Clips without an expiry are kept.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
