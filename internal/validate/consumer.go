package validate

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

// Consumer pulls processed records, validates them, and publishes either a
// ValidatedRecord downstream or a ValidationFailure to the dead-letter
// subject. Either way the upstream message is acked: a rejected record is a
// handled record.
type Consumer struct {
	nats      *broker.Client
	publisher *broker.Publisher
	validator *Validator
	output    string
	rejected  string

	metrics      *telemetry.Metrics
	rejectsTotal *prometheus.CounterVec
	logger       *zap.Logger
	tracer       trace.Tracer
}

// NewConsumer wires the validation consumer.
func NewConsumer(n *broker.Client, pub *broker.Publisher, output, rejected string, m *telemetry.Metrics, l *zap.Logger) *Consumer {
	return &Consumer{
		nats:      n,
		publisher: pub,
		validator: NewValidator(),
		output:    output,
		rejected:  rejected,
		metrics:   m,
		rejectsTotal: m.CounterVec("cdrflow_validation_rejected_total",
			"Records routed to the dead-letter subject.", "error_type"),
		logger: l,
		tracer: otel.Tracer("validation-consumer"),
	}
}

// Start creates the durable pull subscription and launches the loop.
func (c *Consumer) Start(ctx context.Context, input, durable string) error {
	sub, err := c.nats.JS.PullSubscribe(input, durable, nats.BindStream(broker.StreamCDREvents))
	if err != nil {
		return fmt.Errorf("validation consumer: PullSubscribe: %w", err)
	}

	c.logger.Info("validation consumer initialised",
		zap.String("durable", durable),
		zap.String("subject", input),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("validation consumer stopping")
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

	ctx, span := c.tracer.Start(ctx, "validate.processMessage")
	defer span.End()

	var rec schema.ProcessedRecord
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		c.logger.Error("malformed processed record, terminating", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}

	valid, reject := c.validator.Validate(&rec)
	if reject != nil {
		payload, err := json.Marshal(reject)
		if err != nil {
			c.metrics.Errors.Inc()
			msg.Term()
			return
		}
		if err := c.publisher.Publish(ctx, c.rejected, "", payload); err != nil {
			c.logger.Error("failed to publish rejection", zap.Error(err))
			c.metrics.Errors.Inc()
			msg.Nak()
			return
		}
		c.rejectsTotal.WithLabelValues(reject.ErrorType).Inc()
		c.logger.Warn("record rejected",
			zap.String("error_type", reject.ErrorType),
			zap.String("field", reject.Field),
		)
		msg.Ack()
		return
	}

	payload, err := json.Marshal(valid)
	if err != nil {
		c.logger.Error("failed to encode validated record", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}
	if err := c.publisher.Publish(ctx, c.output, valid.CDRID, payload); err != nil {
		c.logger.Error("failed to publish validated record", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Nak()
		return
	}

	c.metrics.Published.Inc()
	msg.Ack()
}
