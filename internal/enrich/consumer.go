package enrich

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

// Consumer pulls unified records, enriches them and publishes downstream.
type Consumer struct {
	nats      *broker.Client
	publisher *broker.Publisher
	enricher  *Enricher
	output    string

	metrics *telemetry.Metrics
	byRisk  *prometheus.CounterVec
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewConsumer wires the enrichment consumer.
func NewConsumer(n *broker.Client, pub *broker.Publisher, enricher *Enricher, output string, m *telemetry.Metrics, l *zap.Logger) *Consumer {
	return &Consumer{
		nats:      n,
		publisher: pub,
		enricher:  enricher,
		output:    output,
		metrics:   m,
		byRisk: m.CounterVec("cdrflow_enriched_records_total",
			"Enriched records produced, by risk level.", "risk_level"),
		logger: l,
		tracer: otel.Tracer("enrichment-consumer"),
	}
}

// Start creates the durable pull subscription and launches the loop.
func (c *Consumer) Start(ctx context.Context, input, durable string) error {
	sub, err := c.nats.JS.PullSubscribe(input, durable, nats.BindStream(broker.StreamCDREvents))
	if err != nil {
		return fmt.Errorf("enrichment consumer: PullSubscribe: %w", err)
	}

	c.logger.Info("enrichment consumer initialised",
		zap.String("durable", durable),
		zap.String("subject", input),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("enrichment consumer stopping")
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

	ctx, span := c.tracer.Start(ctx, "enrich.processMessage")
	defer span.End()

	var rec schema.UnifiedRecord
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		c.logger.Error("malformed unified record, terminating", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}

	enriched := c.enricher.Enrich(&rec)

	payload, err := json.Marshal(enriched)
	if err != nil {
		c.logger.Error("failed to encode enriched record", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}
	if err := c.publisher.Publish(ctx, c.output, enriched.CDRID, payload); err != nil {
		c.logger.Error("failed to publish enriched record", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Nak()
		return
	}

	if enriched.FraudInfo != nil {
		c.byRisk.WithLabelValues(enriched.FraudInfo.RiskLevel).Inc()
	}
	c.metrics.Published.Inc()
	msg.Ack()
}
