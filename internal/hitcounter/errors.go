package hitcounter

import (
	"errors"
	"fmt"

	"clipstash/internal/domain"
)

// ErrClosed is returned when a message cannot be delivered because the
// aggregator has been stopped.
var ErrClosed = errors.New("hitcounter: aggregator is closed")

// PersistenceError reports hits that were lost because the sink failed to
// persist them. Lost hits are never retried.
type PersistenceError struct {
	Code domain.ShortCode
	Hits uint64
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("hitcounter: persist %d hits for %s: %v", e.Hits, e.Code, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
