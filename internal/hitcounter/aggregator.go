// Package hitcounter coalesces clip view events in memory and periodically
// persists the totals in one batched write.
//
// Hit counting is best effort. A hit is lost when the queue is full, when
// it arrives after Stop, or when the sink fails to persist the batch that
// contains it. Lost hits are logged and never retried.
package hitcounter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"clipstash/internal/conf"
	"clipstash/internal/domain"
	"clipstash/internal/domain/event"

	"github.com/go-kratos/kratos/v2/log"
)

// Sink durably applies hit deltas.
type Sink interface {
	IncrementHits(ctx context.Context, code domain.ShortCode, delta uint64) error
}

// Publisher receives a HitsFlushed event after every committed batch.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(a *Aggregator) { a.publisher = p }
}

// withScheduler replaces the flush ticker.
func withScheduler(newScheduler func(time.Duration) flushScheduler) Option {
	return func(a *Aggregator) { a.newScheduler = newScheduler }
}

// Aggregator owns the hit store. A single loop goroutine reads messages and
// flush ticks, so the store is never touched concurrently.
type Aggregator struct {
	sink      Sink
	uow       domain.UnitOfWork
	publisher Publisher
	log       *log.Helper

	interval      time.Duration
	commitTimeout time.Duration
	newScheduler  func(time.Duration) flushScheduler

	msgs   chan message
	handle *Handle

	mu    sync.Mutex
	state lifecycle
	quit  chan struct{}
	done  chan struct{}
}

type lifecycle uint8

const (
	stateIdle lifecycle = iota
	stateRunning
	stateStopped
)

// publishTimeout bounds the HitsFlushed publish, which runs after the commit
// deadline may already have passed.
const publishTimeout = 2 * time.Second

// NewAggregator creates an aggregator. Nothing runs until Start.
// uow may be nil, in which case each batch is applied without a transaction.
func NewAggregator(sink Sink, uow domain.UnitOfWork, c *conf.HitCounter, logger log.Logger, opts ...Option) *Aggregator {
	msgs := make(chan message, c.QueueSizeOrDefault())
	done := make(chan struct{})
	helper := log.NewHelper(log.With(logger, "module", "hitcounter"))

	a := &Aggregator{
		sink:          sink,
		uow:           uow,
		log:           helper,
		interval:      c.FlushIntervalOrDefault(),
		commitTimeout: c.CommitTimeoutOrDefault(),
		newScheduler:  newTickerScheduler,
		msgs:          msgs,
		handle:        &Handle{msgs: msgs, stopped: done, log: helper},
		quit:          make(chan struct{}),
		done:          done,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle returns the producer handle. It is valid before Start.
func (a *Aggregator) Handle() *Handle {
	return a.handle
}

// Start spawns the aggregator loop and returns the producer handle.
// It never blocks. Calling Start again, or after Stop, has no effect.
func (a *Aggregator) Start() *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != stateIdle {
		return a.handle
	}
	a.state = stateRunning
	go a.run(a.newScheduler(a.interval))
	a.log.Infof("hit counter started, flush interval %s", a.interval)
	return a.handle
}

// Stop closes the handle, merges hits still in the queue, commits a final
// batch and waits for the loop to exit or ctx to be done.
func (a *Aggregator) Stop(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case stateIdle:
		a.handle.close()
		close(a.done)
	case stateRunning:
		a.handle.close()
		close(a.quit)
	}
	a.state = stateStopped
	a.mu.Unlock()

	select {
	case <-a.done:
		a.log.Info("hit counter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loopState is mutated only by the loop goroutine.
type loopState struct {
	store *hitStore
	// waiters are Flush callers whose hits are still in the store.
	waiters []chan struct{}
	// inFlight is set while a committer goroutine owns a drained batch.
	inFlight bool
	// deferred records a flush requested while a commit was in flight.
	deferred bool
}

func (a *Aggregator) run(scheduler flushScheduler) {
	defer close(a.done)
	defer scheduler.Stop()

	st := &loopState{store: newHitStore()}
	committed := make(chan []chan struct{}, 1)

	for {
		select {
		case msg := <-a.msgs:
			a.handleMessage(st, msg, committed)
		case <-scheduler.C():
			a.requestFlush(st, committed)
		case waiters := <-committed:
			st.inFlight = false
			closeAll(waiters)
			if st.deferred {
				st.deferred = false
				a.requestFlush(st, committed)
			}
		case <-a.quit:
			a.shutdown(st, committed)
			return
		}
	}
}

func (a *Aggregator) handleMessage(st *loopState, msg message, committed chan []chan struct{}) {
	switch msg.kind {
	case msgHit:
		st.store.merge(msg.code, msg.delta)
	case msgFlush:
		if msg.done != nil {
			st.waiters = append(st.waiters, msg.done)
		}
		a.requestFlush(st, committed)
	default:
		a.log.Warnf("ignoring message of kind %s", msg.kind)
	}
}

// requestFlush drains the store and hands the batch to a committer
// goroutine. At most one commit is in flight; a flush requested meanwhile
// runs once it has finished.
func (a *Aggregator) requestFlush(st *loopState, committed chan<- []chan struct{}) {
	if st.inFlight {
		st.deferred = true
		return
	}

	batch := st.store.drain()
	waiters := st.waiters
	st.waiters = nil
	dropped := a.handle.takeDropped()
	if dropped > 0 {
		a.log.Warnf("%d hits dropped since last flush: queue full", dropped)
	}

	if len(batch) == 0 {
		closeAll(waiters)
		return
	}

	st.inFlight = true
	go func() {
		a.commit(batch, dropped)
		committed <- waiters
	}()
}

func (a *Aggregator) shutdown(st *loopState, committed chan []chan struct{}) {
	// The handle is closed, so nothing new can enter the queue.
	for drained := false; !drained; {
		select {
		case msg := <-a.msgs:
			if msg.kind == msgFlush {
				if msg.done != nil {
					st.waiters = append(st.waiters, msg.done)
				}
				continue
			}
			st.store.merge(msg.code, msg.delta)
		default:
			drained = true
		}
	}

	if st.inFlight {
		closeAll(<-committed)
		st.inFlight = false
	}

	dropped := a.handle.takeDropped()
	if batch := st.store.drain(); len(batch) > 0 {
		a.commit(batch, dropped)
	}
	closeAll(st.waiters)
}

// commit applies batch to the sink inside one unit of work. A failing key
// is logged and skipped, the remaining keys are still applied.
func (a *Aggregator) commit(batch Batch, dropped uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), a.commitTimeout)
	defer cancel()

	start := time.Now()
	var failed []string
	apply := func(ctx context.Context) error {
		failed = failed[:0]
		for _, entry := range batch {
			if err := a.sink.IncrementHits(ctx, entry.Code, entry.Hits); err != nil {
				a.log.Error(&PersistenceError{Code: entry.Code, Hits: entry.Hits, Err: err})
				failed = append(failed, entry.Code.String())
			}
		}
		return nil
	}

	var err error
	if a.uow != nil {
		err = a.uow.Do(ctx, apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		a.log.Errorf("hits lost: commit of %d keys (%d hits) failed: %v", len(batch), batch.Total(), err)
		return
	}

	took := time.Since(start)
	a.log.Debugf("flushed %d hits for %d keys in %s (%d failed)", batch.Total(), len(batch), took, len(failed))

	if a.publisher != nil {
		evt := event.NewHitsFlushed(len(batch), batch.Total(), failed, dropped, took)
		pubCtx, pubCancel := context.WithTimeout(context.Background(), publishTimeout)
		defer pubCancel()
		if err := a.publisher.Publish(pubCtx, evt); err != nil {
			a.log.Warnf("failed to publish %s: %v", evt.EventName(), err)
		}
	}
}

func closeAll(chans []chan struct{}) {
	for _, ch := range chans {
		close(ch)
	}
}

// Handle is the producer side of the aggregator, used by request handlers.
// It is safe for concurrent use.
type Handle struct {
	msgs    chan<- message
	stopped <-chan struct{}
	log     *log.Helper

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// RecordHit enqueues delta hits for code and returns immediately.
// When the queue is full the hits are dropped and counted; after Stop the
// call is a no-op. It never reports an error to the caller.
func (h *Handle) RecordHit(code domain.ShortCode, delta uint64) {
	if delta == 0 || code.IsEmpty() {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.log.Debugf("hit for %s not recorded: %v", code, ErrClosed)
		return
	}

	select {
	case h.msgs <- hitMessage(code, delta):
	default:
		h.dropped.Add(delta)
	}
}

// Flush enqueues a flush behind the caller's earlier hits and waits until
// the resulting batch has been committed. Persistence failures are logged
// by the aggregator, not returned here.
func (h *Handle) Flush(ctx context.Context) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	done := make(chan struct{})
	select {
	case h.msgs <- flushMessage(done):
	case <-h.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-h.stopped:
		// the loop closes waiters before it exits
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of hits dropped because the queue was full
// and not yet reported by a flush.
func (h *Handle) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Handle) takeDropped() uint64 {
	return h.dropped.Swap(0)
}

func (h *Handle) close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}
