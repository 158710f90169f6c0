// Package analytics records search activity: every event is folded into an
// in-process Aggregator and shipped to Kafka in batches.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kikaihonyaku/cocosumo-sub004/pkg/kafka"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/metrics"
)

// Publisher ships encoded events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig sizes the event buffer and batching.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events without blocking request handlers. A full
// buffer drops events.
type Collector struct {
	publisher  Publisher
	aggregator *Aggregator
	metrics    *metrics.Metrics
	cfg        CollectorConfig
	eventCh    chan SearchEvent
	logger     *slog.Logger
	done       chan struct{}
	closeOnce  sync.Once
}

// NewCollector creates a Collector. publisher, aggregator and m may each be
// nil.
func NewCollector(publisher Publisher, aggregator *Aggregator, m *metrics.Metrics, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Collector{
		publisher:  publisher,
		aggregator: aggregator,
		metrics:    m,
		cfg:        cfg,
		eventCh:    make(chan SearchEvent, cfg.BufferSize),
		logger:     slog.Default().With("component", "analytics-collector"),
		done:       make(chan struct{}),
	}
}

// Start runs the batching loop until Close is called.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.cfg.BatchSize)
		flush := func(ctx context.Context) {
			if len(batch) == 0 || c.publisher == nil {
				batch = batch[:0]
				return
			}
			if err := c.publisher.PublishBatch(ctx, batch); err != nil {
				c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
			}
			batch = batch[:0]
		}

		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					flush(flushCtx)
					cancel()
					return
				}
				batch = append(batch, kafka.Event{Key: event.Collection, Value: event})
				if len(batch) >= c.cfg.BatchSize {
					flush(ctx)
				}
			case <-ticker.C:
				flush(ctx)
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", c.cfg.BufferSize, "batch_size", c.cfg.BatchSize)
}

// Track records event locally and queues it for publishing.
func (c *Collector) Track(event SearchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if c.aggregator != nil {
		c.aggregator.Record(event)
	}
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.AnalyticsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events, flushes what is buffered and waits for
// the loop to exit. Track must not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		close(c.eventCh)
		<-c.done
	})
}
