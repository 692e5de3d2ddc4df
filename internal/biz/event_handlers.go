package biz

import (
	"context"
	"encoding/json"
	"sync"

	"clipstash/internal/domain/event"
	"clipstash/internal/infra/eventbus"

	"github.com/go-kratos/kratos/v2/log"
)

// Compile-time interface checks
var (
	_ eventbus.EventHandler = (*LoggingEventHandler)(nil)
	_ eventbus.EventHandler = (*FlushStatsHandler)(nil)
)

// LoggingEventHandler logs domain events.
type LoggingEventHandler struct {
	log       *log.Helper
	eventName string
}

// NewLoggingEventHandler creates a new logging event handler.
func NewLoggingEventHandler(logger log.Logger, eventName string) *LoggingEventHandler {
	return &LoggingEventHandler{
		log:       log.NewHelper(logger),
		eventName: eventName,
	}
}

func (h *LoggingEventHandler) HandlerName() string {
	return "logging_handler_" + h.eventName
}

func (h *LoggingEventHandler) EventName() string {
	return h.eventName
}

// Handle logs the event details.
func (h *LoggingEventHandler) Handle(ctx context.Context, envelope *eventbus.EventEnvelope) error {
	switch envelope.EventName {
	case event.HitsFlushedName:
		var evt event.HitsFlushed
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return err
		}
		if len(evt.FailedKeys) > 0 {
			h.log.WithContext(ctx).Warnf("[Event] hits flushed: %d hits for %d clips, failed: %v", evt.Hits, evt.Keys, evt.FailedKeys)
			return nil
		}
		h.log.WithContext(ctx).Debugf("[Event] hits flushed: %d hits for %d clips in %s", evt.Hits, evt.Keys, evt.Took)
	case event.ClipsExpiredName:
		var evt event.ClipsExpired
		if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
			return err
		}
		h.log.WithContext(ctx).Infof("[Event] %d clips expired at %s", evt.Deleted, evt.SweptAt)
	default:
		h.log.WithContext(ctx).Infof("[Event] %s: %s", envelope.EventName, envelope.Source)
	}
	return nil
}

// FlushStatsHandler keeps running totals of flushed, failed and dropped hits.
type FlushStatsHandler struct {
	log *log.Helper

	mu    sync.Mutex
	stats FlushStats
}

// FlushStats are the totals seen by a FlushStatsHandler.
type FlushStats struct {
	Batches uint64
	Hits    uint64
	Failed  uint64
	Dropped uint64
}

// NewFlushStatsHandler creates a new flush stats handler.
func NewFlushStatsHandler(logger log.Logger) *FlushStatsHandler {
	return &FlushStatsHandler{log: log.NewHelper(logger)}
}

func (h *FlushStatsHandler) HandlerName() string {
	return "flush_stats_handler"
}

func (h *FlushStatsHandler) EventName() string {
	return event.HitsFlushedName
}

// Handle adds a flushed batch to the totals.
func (h *FlushStatsHandler) Handle(ctx context.Context, envelope *eventbus.EventEnvelope) error {
	var evt event.HitsFlushed
	if err := json.Unmarshal(envelope.Payload, &evt); err != nil {
		h.log.Warnf("failed to unmarshal HitsFlushed event: %v", err)
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats.Batches++
	h.stats.Hits += evt.Hits
	h.stats.Failed += uint64(len(evt.FailedKeys))
	h.stats.Dropped += evt.Dropped
	if evt.Dropped > 0 {
		h.log.WithContext(ctx).Warnf("%d hits dropped in total, the hit counter queue is too small", h.stats.Dropped)
	}
	return nil
}

// Stats returns the totals.
func (h *FlushStatsHandler) Stats() FlushStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// RegisterEventHandlers registers all event handlers with the router.
func RegisterEventHandlers(router *eventbus.Router, logger log.Logger) {
	eventNames := []string{
		event.HitsFlushedName,
		event.ClipsExpiredName,
	}

	// Register logging handlers for all event types
	for _, eventName := range eventNames {
		router.AddHandler(NewLoggingEventHandler(logger, eventName))
	}

	router.AddHandler(NewFlushStatsHandler(logger))
}
