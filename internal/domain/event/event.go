// Package event holds the notifications raised by the clip store's
// background work. They describe a run of a component, not a change to a
// single clip, so they carry the emitting component instead of an aggregate.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Components that raise events.
const (
	SourceHitCounter  = "hitcounter"
	SourceMaintenance = "maintenance"
)

// Event is published on the event bus after background work completes.
type Event interface {
	EventID() string
	EventName() string
	OccurredAt() time.Time
	// Source names the component that raised the event.
	Source() string
}

// Meta holds the fields shared by every event.
type Meta struct {
	ID     string    `json:"event_id"`
	At     time.Time `json:"occurred_at"`
	Origin string    `json:"source"`
}

// newMeta stamps a time-ordered id and the current UTC time.
func newMeta(source string) Meta {
	return Meta{
		ID:     uuid.Must(uuid.NewV7()).String(),
		At:     time.Now().UTC(),
		Origin: source,
	}
}

func (m Meta) EventID() string       { return m.ID }
func (m Meta) OccurredAt() time.Time { return m.At }
func (m Meta) Source() string        { return m.Origin }
