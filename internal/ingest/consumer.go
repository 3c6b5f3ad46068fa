package ingest

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
	"github.com/cdrflow/cdrflow/internal/telemetry"
)

// fetchBatch is the pull-subscription batch size. Unacked messages beyond
// this are the stage's backpressure signal to the broker.
const fetchBatch = 10

// Consumer pulls raw payloads from the per-country subjects, decodes them
// and republishes ProcessedRecords downstream.
type Consumer struct {
	nats      *broker.Client
	publisher *broker.Publisher
	processor *Processor
	output    string

	metrics    *telemetry.Metrics
	bytesTotal prometheus.Counter
	decodeErrs prometheus.Counter
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewConsumer wires the ingestion consumer publishing to the output subject.
func NewConsumer(n *broker.Client, pub *broker.Publisher, output string, m *telemetry.Metrics, l *zap.Logger) *Consumer {
	return &Consumer{
		nats:       n,
		publisher:  pub,
		processor:  NewProcessor(l),
		output:     output,
		metrics:    m,
		bytesTotal: m.Counter("cdrflow_ingestion_bytes_total", "Total raw bytes ingested."),
		decodeErrs: m.Counter("cdrflow_ingestion_decode_errors_total", "Raw payloads dropped because they could not be decoded."),
		logger:     l,
		tracer:     otel.Tracer("ingestion-consumer"),
	}
}

// Start creates a durable pull subscription over the raw subject wildcard
// and launches the processing loop in a background goroutine. It returns
// immediately.
func (c *Consumer) Start(ctx context.Context, rawSubject, durable string) error {
	sub, err := c.nats.JS.PullSubscribe(
		rawSubject,
		durable,
		nats.BindStream(broker.StreamCDREvents),
	)
	if err != nil {
		return fmt.Errorf("ingestion consumer: PullSubscribe: %w", err)
	}

	c.logger.Info("ingestion consumer initialised",
		zap.String("stream", broker.StreamCDREvents),
		zap.String("durable", durable),
		zap.String("subject", rawSubject),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("ingestion consumer stopping")
				return
			default:
				msgs, err := sub.Fetch(fetchBatch, nats.Context(ctx))
				if err != nil {
					// Fetch returns nats.ErrTimeout on an empty queue; not an error.
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

// processMessage handles acknowledgment: undecodable payloads are
// terminated (poison pill), publish failures are NAKed for redelivery, and
// the message is acked only after the downstream publish succeeded.
func (c *Consumer) processMessage(ctx context.Context, msg *nats.Msg) {
	timer := prometheus.NewTimer(c.metrics.Latency)
	defer timer.ObserveDuration()

	c.metrics.Consumed.Inc()
	c.bytesTotal.Add(float64(len(msg.Data)))

	ctx, span := c.tracer.Start(ctx, "ingest.processMessage")
	defer span.End()

	rec := c.processor.Process(msg.Data, msg.Subject)
	if rec == nil {
		c.decodeErrs.Inc()
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error("failed to encode processed record", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}

	if err := c.publisher.Publish(ctx, c.output, "", payload); err != nil {
		c.logger.Error("failed to publish processed record", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Nak()
		return
	}

	c.metrics.Published.Inc()
	msg.Ack()
}
