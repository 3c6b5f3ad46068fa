package coldstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cdrflow/cdrflow/internal/broker"
	"github.com/cdrflow/cdrflow/internal/schema"
	"github.com/cdrflow/cdrflow/internal/telemetry"
)

const fetchBatch = 10

// Consumer pulls enriched records into the archive batcher. This is a
// terminal stage: nothing is republished.
type Consumer struct {
	nats    *broker.Client
	batcher *Batcher
	done    chan struct{}

	metrics  *telemetry.Metrics
	archived prometheus.Counter
	pending  prometheus.Gauge
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewConsumer wires the cold-store consumer.
func NewConsumer(n *broker.Client, batcher *Batcher, m *telemetry.Metrics, l *zap.Logger) *Consumer {
	return &Consumer{
		nats:     n,
		batcher:  batcher,
		done:     make(chan struct{}),
		metrics:  m,
		archived: m.Counter("cdrflow_coldstore_records_batched_total", "Records accepted into archive batches."),
		pending:  m.Gauge("cdrflow_coldstore_pending_records", "Records buffered in open archive batches."),
		logger:   l,
		tracer:   otel.Tracer("coldstore-consumer"),
	}
}

// Done is closed once the fetch loop has exited and no further records will
// reach the batcher. Shutdown waits on this before the final drain.
func (c *Consumer) Done() <-chan struct{} { return c.done }

// Start creates the durable pull subscription and launches the loop.
func (c *Consumer) Start(ctx context.Context, input, durable string) error {
	sub, err := c.nats.JS.PullSubscribe(input, durable, nats.BindStream(broker.StreamCDREvents))
	if err != nil {
		return fmt.Errorf("coldstore consumer: PullSubscribe: %w", err)
	}

	c.logger.Info("coldstore consumer initialised",
		zap.String("durable", durable),
		zap.String("subject", input),
	)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("coldstore consumer stopping")
				return
			default:
				msgs, err := sub.Fetch(fetchBatch, nats.Context(ctx))
				if err != nil {
					continue
				}
				for _, msg := range msgs {
					c.processMessage(ctx, msg)
				}
			}
		}
	}()

	return nil
}

func (c *Consumer) processMessage(ctx context.Context, msg *nats.Msg) {
	timer := prometheus.NewTimer(c.metrics.Latency)
	defer timer.ObserveDuration()

	c.metrics.Consumed.Inc()

	ctx, span := c.tracer.Start(ctx, "coldstore.processMessage")
	defer span.End()

	var rec schema.EnrichedRecord
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		c.logger.Error("malformed enriched record, terminating", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}

	c.batcher.Add(ctx, &rec)
	c.archived.Inc()
	c.pending.Set(float64(c.batcher.Snapshot().PendingRecords))
	msg.Ack()
}
