package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventBatchReceived EventType = "batch_received"
	EventBatchResolved EventType = "batch_resolved"
	EventCallDenied    EventType = "call_denied"
	EventStateChanged  EventType = "state_changed"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Breaker   string
	Duration  time.Duration
	Failed    bool
	ToState   string
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit sends an event without ever blocking the caller; when the buffer is
// full the event is dropped.
func (c *Collector) Emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventBatchReceived:
		c.metrics.IncrementBatches()

	case EventBatchResolved:
		c.metrics.RecordResolution(event.Duration, event.Failed)

	case EventCallDenied:
		c.metrics.RecordDenial(event.Breaker)

	case EventStateChanged:
		c.metrics.RecordStateChange(event.Breaker, event.ToState)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
