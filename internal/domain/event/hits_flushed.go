package event

import "time"

// Compile-time interface check
var _ Event = HitsFlushed{}

const HitsFlushedName = "clip.hits_flushed"

// HitsFlushed is raised after the hit counter committed a batch.
type HitsFlushed struct {
	Meta
	Keys       int           `json:"keys"`
	Hits       uint64        `json:"hits"`
	FailedKeys []string      `json:"failed_keys,omitempty"`
	Dropped    uint64        `json:"dropped"`
	Took       time.Duration `json:"took"`
}

// NewHitsFlushed creates a new HitsFlushed event.
func NewHitsFlushed(keys int, hits uint64, failedKeys []string, dropped uint64, took time.Duration) HitsFlushed {
	return HitsFlushed{
		Meta:       newMeta(SourceHitCounter),
		Keys:       keys,
		Hits:       hits,
		FailedKeys: failedKeys,
		Dropped:    dropped,
		Took:       took,
	}
}

// EventName returns the event name.
func (e HitsFlushed) EventName() string {
	return HitsFlushedName
}
