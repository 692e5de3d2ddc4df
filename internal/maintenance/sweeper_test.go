package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clipstash/internal/conf"
	"clipstash/internal/domain/event"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memExpirer keeps expiry times by short code; nil means no expiry.
type memExpirer struct {
	mu    sync.Mutex
	clips map[string]*time.Time
	err   error
	calls int
}

func (m *memExpirer) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for code, expires := range m.clips {
		if expires != nil && !expires.After(now) {
			delete(m.clips, code)
			n++
		}
	}
	return n, nil
}

func (m *memExpirer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func TestSweeper_Sweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	exact := now
	future := now.Add(time.Second)

	repo := &memExpirer{clips: map[string]*time.Time{
		"expired":  &past,
		"boundary": &exact,
		"later":    &future,
		"forever":  nil,
	}}
	pub := &recordingPublisher{}
	s := NewSweeper(repo, &conf.Maintenance{}, pub, log.DefaultLogger)
	s.now = func() time.Time { return now }

	deleted, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Contains(t, repo.clips, "later")
	assert.Contains(t, repo.clips, "forever")
	require.Len(t, pub.events, 1)
	expired, ok := pub.events[0].(event.ClipsExpired)
	require.True(t, ok)
	assert.Equal(t, int64(2), expired.Deleted)
	assert.Equal(t, now, expired.SweptAt)
}

func TestSweeper_SweepNothingToDelete(t *testing.T) {
	repo := &memExpirer{clips: map[string]*time.Time{"forever": nil}}
	pub := &recordingPublisher{}
	s := NewSweeper(repo, &conf.Maintenance{}, pub, log.DefaultLogger)

	deleted, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Empty(t, pub.events)
}

func TestSweeper_SweepError(t *testing.T) {
	repo := &memExpirer{err: errors.New("database is locked")}
	s := NewSweeper(repo, &conf.Maintenance{}, nil, log.DefaultLogger)

	_, err := s.Sweep(context.Background())

	assert.EqualError(t, err, "database is locked")
}

func TestSweeper_KeepsTickingAfterFailure(t *testing.T) {
	repo := &memExpirer{err: errors.New("database is locked")}
	s := NewSweeper(repo, &conf.Maintenance{
		SweepInterval: conf.Duration(10 * time.Millisecond),
	}, nil, log.DefaultLogger)

	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return repo.Calls() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSweeper_StopIsIdempotent(t *testing.T) {
	s := NewSweeper(&memExpirer{}, &conf.Maintenance{}, nil, log.DefaultLogger)

	s.Stop()
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
