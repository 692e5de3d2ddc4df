package hitcounter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"clipstash/internal/conf"
	"clipstash/internal/domain"
	"clipstash/internal/domain/event"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/suite"
)

// fakeSink records every IncrementHits call.
type fakeSink struct {
	mu     sync.Mutex
	calls  []BatchEntry
	totals map[domain.ShortCode]uint64
	fail   map[domain.ShortCode]error
	hook   func(ctx context.Context, code domain.ShortCode) error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		totals: make(map[domain.ShortCode]uint64),
		fail:   make(map[domain.ShortCode]error),
	}
}

func (f *fakeSink) IncrementHits(ctx context.Context, code domain.ShortCode, delta uint64) error {
	f.mu.Lock()
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, code); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[code]; err != nil {
		return err
	}
	f.calls = append(f.calls, BatchEntry{Code: code, Hits: delta})
	f.totals[code] += delta
	return nil
}

func (f *fakeSink) setHook(hook func(ctx context.Context, code domain.ShortCode) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

func (f *fakeSink) failFor(code domain.ShortCode, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[code] = err
}

func (f *fakeSink) Calls() []BatchEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BatchEntry(nil), f.calls...)
}

func (f *fakeSink) Total(code domain.ShortCode) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals[code]
}

// fakeUnitOfWork counts transactions and can fail them.
type fakeUnitOfWork struct {
	mu  sync.Mutex
	n   int
	err error
}

func (u *fakeUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	u.mu.Lock()
	u.n++
	err := u.err
	u.mu.Unlock()
	if err := fn(ctx); err != nil {
		return err
	}
	return err
}

func (u *fakeUnitOfWork) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.n
}

type fakePublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *fakePublisher) Publish(ctx context.Context, e event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Events() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Event(nil), p.events...)
}

type manualScheduler struct {
	ch chan time.Time
}

func (m *manualScheduler) C() <-chan time.Time { return m.ch }
func (m *manualScheduler) Stop()               {}

var (
	codeA = domain.MustShortCode("abcd1234ab")
	codeB = domain.MustShortCode("dcba4321dc")
)

type AggregatorTestSuite struct {
	suite.Suite
	sink      *fakeSink
	uow       *fakeUnitOfWork
	publisher *fakePublisher
	scheduler *manualScheduler
	sut       *Aggregator
	handle    *Handle
}

func TestAggregatorTestSuite(t *testing.T) {
	suite.Run(t, new(AggregatorTestSuite))
}

func (s *AggregatorTestSuite) SetupTest() {
	s.sink = newFakeSink()
	s.uow = &fakeUnitOfWork{}
	s.publisher = &fakePublisher{}
	s.scheduler = &manualScheduler{ch: make(chan time.Time)}
	s.sut = s.newAggregator(&conf.HitCounter{
		FlushInterval: conf.Duration(time.Hour),
		CommitTimeout: conf.Duration(time.Second),
		QueueSize:     4096,
	})
	s.handle = s.sut.Start()
}

func (s *AggregatorTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.NoError(s.sut.Stop(ctx))
}

func (s *AggregatorTestSuite) newAggregator(c *conf.HitCounter) *Aggregator {
	return NewAggregator(s.sink, s.uow, c, log.DefaultLogger,
		WithPublisher(s.publisher),
		withScheduler(func(time.Duration) flushScheduler { return s.scheduler }),
	)
}

func (s *AggregatorTestSuite) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(s.handle.Flush(ctx))
}

func (s *AggregatorTestSuite) TestFiveHitsBecomeOneIncrement() {
	// Arrange
	for i := 0; i < 5; i++ {
		s.handle.RecordHit(codeA, 1)
	}

	// Act
	s.flush()

	// Assert
	s.Equal([]BatchEntry{{Code: codeA, Hits: 5}}, s.sink.Calls())
	s.flush()
	s.Len(s.sink.Calls(), 1, "drained key must not be written again")
}

func (s *AggregatorTestSuite) TestMergeSumsArbitraryDeltas() {
	// Arrange
	deltas := []uint64{3, 1, 7, 10, 2}
	for _, d := range deltas {
		s.handle.RecordHit(codeA, d)
	}

	// Act
	s.flush()

	// Assert
	s.Equal(uint64(23), s.sink.Total(codeA))
}

func (s *AggregatorTestSuite) TestKeyIsolation() {
	// Arrange
	s.handle.RecordHit(codeA, 2)
	s.handle.RecordHit(codeB, 1)
	s.handle.RecordHit(codeA, 2)

	// Act
	s.flush()

	// Assert
	s.Equal([]BatchEntry{{Code: codeA, Hits: 4}, {Code: codeB, Hits: 1}}, s.sink.Calls())
	s.Equal(1, s.uow.Count(), "one batch is one transaction")
}

func (s *AggregatorTestSuite) TestEmptyFlushPerformsNoSinkCalls() {
	// Act
	s.flush()
	s.flush()

	// Assert
	s.Empty(s.sink.Calls())
	s.Zero(s.uow.Count())
	s.Empty(s.publisher.Events())
}

func (s *AggregatorTestSuite) TestZeroDeltaIsIgnored() {
	// Act
	s.handle.RecordHit(codeA, 0)
	s.flush()

	// Assert
	s.Empty(s.sink.Calls())
}

func (s *AggregatorTestSuite) TestPartialBatchResilience() {
	// Arrange
	s.sink.failFor(codeA, errors.New("disk full"))
	s.handle.RecordHit(codeA, 3)
	s.handle.RecordHit(codeB, 4)

	// Act
	s.flush()

	// Assert
	s.Equal(uint64(0), s.sink.Total(codeA))
	s.Equal(uint64(4), s.sink.Total(codeB))

	// failed hits are not re-queued
	s.sink.failFor(codeA, nil)
	s.flush()
	s.Equal(uint64(0), s.sink.Total(codeA))

	events := s.publisher.Events()
	s.Require().Len(events, 1)
	flushed, ok := events[0].(event.HitsFlushed)
	s.Require().True(ok)
	s.Equal([]string{codeA.String()}, flushed.FailedKeys)
	s.Equal(uint64(7), flushed.Hits)
}

func (s *AggregatorTestSuite) TestTransactionFailureLosesBatch() {
	// Arrange
	s.uow.mu.Lock()
	s.uow.err = errors.New("commit failed")
	s.uow.mu.Unlock()
	s.handle.RecordHit(codeA, 1)

	// Act
	s.flush()

	// Assert
	s.uow.mu.Lock()
	s.uow.err = nil
	s.uow.mu.Unlock()
	s.handle.RecordHit(codeB, 1)
	s.flush()
	s.Equal(2, s.uow.Count())
	s.Len(s.publisher.Events(), 1, "only the successful batch is announced")
}

func (s *AggregatorTestSuite) TestScheduledTickFlushes() {
	// Arrange
	s.handle.RecordHit(codeA, 2)
	s.flush()
	s.handle.RecordHit(codeB, 1)

	// Act
	s.scheduler.ch <- time.Now()

	// Assert
	s.Eventually(func() bool {
		return s.sink.Total(codeB) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *AggregatorTestSuite) TestRecordHitDoesNotBlockWhileSinkIsStuck() {
	// Arrange
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.sink.setHook(func(ctx context.Context, _ domain.ShortCode) error {
		once.Do(func() { close(entered) })
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	s.handle.RecordHit(codeA, 1)
	go s.handle.Flush(context.Background())
	<-entered

	// Act
	start := time.Now()
	for i := 0; i < 20000; i++ {
		s.handle.RecordHit(codeB, 1)
	}
	elapsed := time.Since(start)
	close(release)

	// Assert
	s.Less(elapsed, time.Second)
}

func (s *AggregatorTestSuite) TestStoreAcceptsHitsDuringCommit() {
	// Arrange
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.sink.setHook(func(ctx context.Context, code domain.ShortCode) error {
		if code == codeA {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
		return nil
	})
	s.handle.RecordHit(codeA, 1)
	firstDone := make(chan error, 1)
	go func() { firstDone <- s.handle.Flush(context.Background()) }()
	<-entered

	// Act
	s.handle.RecordHit(codeA, 2)
	s.handle.RecordHit(codeB, 5)
	secondDone := make(chan error, 1)
	go func() { secondDone <- s.handle.Flush(context.Background()) }()
	close(release)

	// Assert
	s.NoError(<-firstDone)
	s.NoError(<-secondDone)
	s.Equal([]BatchEntry{
		{Code: codeA, Hits: 1},
		{Code: codeA, Hits: 2},
		{Code: codeB, Hits: 5},
	}, s.sink.Calls())
}

func (s *AggregatorTestSuite) TestConcurrentHitsAndFlushesAreCountedOnce() {
	// Arrange
	const producers, perProducer = 8, 400
	var wg sync.WaitGroup
	stop := make(chan struct{})
	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		for {
			select {
			case <-stop:
				return
			default:
				s.handle.Flush(context.Background())
			}
		}
	}()

	// Act
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			code := domain.MustShortCode(fmt.Sprintf("code%d", p%3))
			for i := 0; i < perProducer; i++ {
				s.handle.RecordHit(code, 1)
			}
		}(p)
	}
	wg.Wait()
	close(stop)
	<-flusherDone
	s.flush()

	// Assert
	s.Zero(s.handle.Dropped())
	var total uint64
	for _, c := range s.sink.Calls() {
		total += c.Hits
	}
	s.Equal(uint64(producers*perProducer), total)
}

func (s *AggregatorTestSuite) TestCommitTimeoutIsTreatedAsFailure() {
	// Arrange
	s.Require().NoError(s.sut.Stop(context.Background()))
	s.sut = s.newAggregator(&conf.HitCounter{
		FlushInterval: conf.Duration(time.Hour),
		CommitTimeout: conf.Duration(20 * time.Millisecond),
	})
	s.handle = s.sut.Start()
	s.sink.setHook(func(ctx context.Context, code domain.ShortCode) error {
		if code == codeA {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	s.handle.RecordHit(codeA, 1)

	// Act
	s.flush()
	s.handle.RecordHit(codeB, 1)
	s.flush()

	// Assert
	s.Equal(uint64(0), s.sink.Total(codeA))
	s.Equal(uint64(1), s.sink.Total(codeB))
}

func (s *AggregatorTestSuite) TestFlushEventPublishedAfterSlowCommit() {
	// Arrange
	s.Require().NoError(s.sut.Stop(context.Background()))
	s.sut = s.newAggregator(&conf.HitCounter{
		FlushInterval: conf.Duration(time.Hour),
		CommitTimeout: conf.Duration(20 * time.Millisecond),
	})
	s.handle = s.sut.Start()
	s.sink.setHook(func(ctx context.Context, _ domain.ShortCode) error {
		// the write lands just as the commit deadline runs out
		<-ctx.Done()
		return nil
	})
	s.handle.RecordHit(codeA, 2)

	// Act
	s.flush()

	// Assert
	s.Equal(uint64(2), s.sink.Total(codeA))
	events := s.publisher.Events()
	s.Require().Len(events, 1)
	flushed, ok := events[0].(event.HitsFlushed)
	s.Require().True(ok)
	s.Equal(uint64(2), flushed.Hits)
}

func (s *AggregatorTestSuite) TestStopCommitsQueuedHits() {
	// Arrange
	s.handle.RecordHit(codeA, 3)
	s.handle.RecordHit(codeB, 1)

	// Act
	s.Require().NoError(s.sut.Stop(context.Background()))

	// Assert
	s.Equal(uint64(3), s.sink.Total(codeA))
	s.Equal(uint64(1), s.sink.Total(codeB))
}

func (s *AggregatorTestSuite) TestHandleAfterStop() {
	// Arrange
	s.Require().NoError(s.sut.Stop(context.Background()))

	// Act
	s.handle.RecordHit(codeA, 1)
	err := s.handle.Flush(context.Background())

	// Assert
	s.ErrorIs(err, ErrClosed)
	s.Empty(s.sink.Calls())
}

func (s *AggregatorTestSuite) TestStopBeforeStart() {
	sut := s.newAggregator(&conf.HitCounter{})
	sut.Handle().RecordHit(codeA, 1)

	s.NoError(sut.Stop(context.Background()))
	s.Equal(sut.Handle(), sut.Start(), "start after stop is a no-op")
	s.ErrorIs(sut.Handle().Flush(context.Background()), ErrClosed)
}

func (s *AggregatorTestSuite) TestFullQueueDropsAndCounts() {
	// Arrange
	sut := s.newAggregator(&conf.HitCounter{QueueSize: 2})
	handle := sut.Handle()

	// Act
	for i := 0; i < 5; i++ {
		handle.RecordHit(codeA, 1)
	}

	// Assert
	s.Equal(uint64(3), handle.Dropped())
	sut.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(handle.Flush(ctx))
	s.Zero(handle.Dropped())
	s.NoError(sut.Stop(ctx))
}
