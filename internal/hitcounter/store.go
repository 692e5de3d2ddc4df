package hitcounter

import (
	"slices"
	"strings"

	"clipstash/internal/domain"

	"github.com/samber/lo"
)

// BatchEntry is the number of hits drained for one clip.
type BatchEntry struct {
	Code domain.ShortCode
	Hits uint64
}

// Batch is a point-in-time snapshot of the hit store, ordered by short code.
// It is handed to the sink once and then discarded.
type Batch []BatchEntry

// Total returns the sum of all hits in the batch.
func (b Batch) Total() uint64 {
	return lo.SumBy(b, func(e BatchEntry) uint64 { return e.Hits })
}

// Codes returns the short codes in the batch.
func (b Batch) Codes() []string {
	return lo.Map(b, func(e BatchEntry, _ int) string { return e.Code.String() })
}

// hitStore accumulates hits that have not been persisted yet.
// It is owned by the aggregator loop and is not safe for concurrent use.
type hitStore struct {
	hits map[domain.ShortCode]uint64
}

func newHitStore() *hitStore {
	return &hitStore{hits: make(map[domain.ShortCode]uint64)}
}

// merge adds delta to the running total for code. A zero delta creates no entry.
func (s *hitStore) merge(code domain.ShortCode, delta uint64) {
	if delta == 0 {
		return
	}
	s.hits[code] += delta
}

// drain swaps the live map for an empty one and returns its contents.
func (s *hitStore) drain() Batch {
	if len(s.hits) == 0 {
		return nil
	}
	batch := lo.MapToSlice(s.hits, func(code domain.ShortCode, hits uint64) BatchEntry {
		return BatchEntry{Code: code, Hits: hits}
	})
	s.hits = make(map[domain.ShortCode]uint64)

	slices.SortFunc(batch, func(a, b BatchEntry) int {
		return strings.Compare(a.Code.String(), b.Code.String())
	})
	return batch
}

func (s *hitStore) get(code domain.ShortCode) (uint64, bool) {
	hits, ok := s.hits[code]
	return hits, ok
}

func (s *hitStore) len() int {
	return len(s.hits)
}
