package hotstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

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

// StoredConfirmation is the terminal event emitted after a row is durably
// written.
type StoredConfirmation struct {
	CDRID            string `json:"cdr_id"`
	RiskLevel        string `json:"risk_level,omitempty"`
	StorageTimestamp string `json:"storage_timestamp"`
}

// Consumer pulls enriched records, upserts them into the row store and
// confirms each durable write on the terminal subject.
type Consumer struct {
	nats      *broker.Client
	repo      *Repository
	publisher *broker.Publisher
	stored    string

	metrics  *telemetry.Metrics
	inserted prometheus.Counter
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewConsumer wires the hot-store consumer.
func NewConsumer(n *broker.Client, repo *Repository, pub *broker.Publisher, stored string, m *telemetry.Metrics, l *zap.Logger) *Consumer {
	return &Consumer{
		nats:      n,
		repo:      repo,
		publisher: pub,
		stored:    stored,
		metrics:   m,
		inserted:  m.Counter("cdrflow_hotstore_rows_upserted_total", "Rows upserted into the row store."),
		logger:    l,
		tracer:    otel.Tracer("hotstore-consumer"),
	}
}

// Start creates the durable pull subscription and launches the loop.
func (c *Consumer) Start(ctx context.Context, input, durable string) error {
	sub, err := c.nats.JS.PullSubscribe(input, durable, nats.BindStream(broker.StreamCDREvents))
	if err != nil {
		return fmt.Errorf("hotstore consumer: PullSubscribe: %w", err)
	}

	c.logger.Info("hotstore consumer initialised",
		zap.String("durable", durable),
		zap.String("subject", input),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("hotstore consumer stopping")
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

// processMessage acks only after the row is durably written; an insert
// failure NAKs so the broker redelivers and the upsert stays idempotent.
func (c *Consumer) processMessage(ctx context.Context, msg *nats.Msg) {
	timer := prometheus.NewTimer(c.metrics.Latency)
	defer timer.ObserveDuration()

	c.metrics.Consumed.Inc()

	ctx, span := c.tracer.Start(ctx, "hotstore.processMessage")
	defer span.End()

	var rec schema.EnrichedRecord
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		c.logger.Error("malformed enriched record, terminating", zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Term()
		return
	}

	if err := c.repo.Insert(ctx, &rec); err != nil {
		c.logger.Error("row store insert failed", zap.String("cdr_id", rec.CDRID), zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Nak()
		return
	}
	c.inserted.Inc()

	// Redelivery after a failed confirmation replays the idempotent upsert.
	confirmation, err := json.Marshal(c.confirmationFor(&rec))
	if err == nil {
		err = c.publisher.Publish(ctx, c.stored, rec.CDRID, confirmation)
	}
	if err != nil {
		c.logger.Error("failed to confirm stored record", zap.String("cdr_id", rec.CDRID), zap.Error(err))
		c.metrics.Errors.Inc()
		msg.Nak()
		return
	}

	c.metrics.Published.Inc()
	msg.Ack()
}

func (c *Consumer) confirmationFor(rec *schema.EnrichedRecord) StoredConfirmation {
	conf := StoredConfirmation{
		CDRID:            rec.CDRID,
		StorageTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if rec.FraudInfo != nil {
		conf.RiskLevel = rec.FraudInfo.RiskLevel
	}
	return conf
}
