// Package maintenance runs periodic housekeeping against the clip store.
package maintenance

import (
	"context"
	"sync"
	"time"

	"clipstash/internal/conf"
	"clipstash/internal/domain/event"

	"github.com/go-kratos/kratos/v2/log"
)

// Expirer deletes clips whose expiry has passed.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Publisher receives a ClipsExpired event after a sweep that deleted rows.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// Sweeper periodically removes expired clips.
type Sweeper struct {
	repo      Expirer
	publisher Publisher
	log       *log.Helper
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper. publisher may be nil.
func NewSweeper(repo Expirer, c *conf.Maintenance, publisher Publisher, logger log.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		publisher: publisher,
		log:       log.NewHelper(log.With(logger, "module", "maintenance")),
		interval:  c.SweepIntervalOrDefault(),
		timeout:   c.SweepTimeoutOrDefault(),
		now:       time.Now,
	}
}

// Start begins sweeping every interval until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
	s.log.Infof("expiry sweeper started, interval %s", s.interval)
}

// Stop stops the sweeper and waits for an in-progress sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("expiry sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a failed sweep is retried on the next tick
			_, _ = s.Sweep(ctx)
		}
	}
}

// Sweep deletes every clip that expired at or before the current time.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	deleted, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		s.log.WithContext(ctx).Errorf("failed to delete expired clips: %v", err)
		return 0, err
	}
	if deleted == 0 {
		return 0, nil
	}

	s.log.WithContext(ctx).Infof("deleted %d expired clips", deleted)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event.NewClipsExpired(deleted, now)); err != nil {
			s.log.WithContext(ctx).Warnf("failed to publish %s: %v", event.ClipsExpiredName, err)
		}
	}
	return deleted, nil
}
