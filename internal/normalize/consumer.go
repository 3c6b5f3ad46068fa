package normalize

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

// Consumer pulls validated records and publishes their unified form.
type Consumer struct {
	nats       *broker.Client
	publisher  *broker.Publisher
	normalizer *Normalizer
	output     string

	metrics *telemetry.Metrics
	byEvent *prometheus.CounterVec
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewConsumer wires the normalization consumer.
func NewConsumer(n *broker.Client, pub *broker.Publisher, output string, m *telemetry.Metrics, l *zap.Logger) *Consumer {
	return &Consumer{
		nats:       n,
		publisher:  pub,
		normalizer: NewNormalizer(),
		output:     output,
		metrics:    m,
		byEvent: m.CounterVec("cdrflow_normalized_records_total",
			"Unified records produced, by event type.", "event_type"),
		logger: l,
		tracer: otel.Tracer("normalization-consumer"),
	}
}

// Start creates the durable pull subscription and launches the loop.
func (c *Consumer) Start(ctx context.Context, input, durable string) error {
	sub, err := c.nats.JS.PullSubscribe(input, durable, nats.BindStream(broker.StreamCDREvents))
	if err != nil {
		return fmt.Errorf("normalization consumer: PullSubscribe: %w", err)
	}

	c.logger.Info("normalization consumer initialised",
		zap.String("durable", durable),
		zap.String("subject", input),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("normalization consumer stopping")
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

	ctx, span := c.tracer.Start(ctx, "normalize.processMessage")
	defer span.End()

	var rec schema.ValidatedRecord
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		c.logger.Error("malformed validated record, terminating", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}

	// raw_data already passed validation, but it can still fail to decode
	// as an object (e.g. a JSON array). That is a poison pill here.
	var doc map[string]any
	if err := json.Unmarshal(rec.RawData, &doc); err != nil {
		c.logger.Error("raw_data is not a JSON object, terminating",
			zap.String("cdr_id", rec.CDRID), zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}

	unified := c.normalizer.Normalize(&rec, doc)

	payload, err := json.Marshal(unified)
	if err != nil {
		c.logger.Error("failed to encode unified record", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}
	if err := c.publisher.Publish(ctx, c.output, unified.CDRID, payload); err != nil {
		c.logger.Error("failed to publish unified record", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Nak()
		return
	}

	c.byEvent.WithLabelValues(string(unified.EventType)).Inc()
	c.metrics.Published.Inc()
	msg.Ack()
}
