package event

import "time"

// Compile-time interface check
var _ Event = ClipsExpired{}

const ClipsExpiredName = "clip.expired"

// ClipsExpired is raised when a sweep deleted expired clips.
type ClipsExpired struct {
	Meta
	Deleted int64     `json:"deleted"`
	SweptAt time.Time `json:"swept_at"`
}

// NewClipsExpired creates a new ClipsExpired event.
func NewClipsExpired(deleted int64, sweptAt time.Time) ClipsExpired {
	return ClipsExpired{
		Meta:    newMeta(SourceMaintenance),
		Deleted: deleted,
		SweptAt: sweptAt,
	}
}

// EventName returns the event name.
func (e ClipsExpired) EventName() string {
	return ClipsExpiredName
}
