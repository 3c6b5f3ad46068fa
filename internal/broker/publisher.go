package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// jetStreamPublisher is the slice of nats.JetStreamContext the publisher
// needs. Narrowed so tests can substitute a fake.
type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher publishes pipeline records with a constant 1 s retry on
// transient broker errors. Retries are bounded only by the caller's context,
// matching the stage contract: infrastructure errors halt progress, never
// data.
type Publisher struct {
	js  jetStreamPublisher
	log *zap.Logger
}

// NewPublisher builds a Publisher on top of an established client.
func NewPublisher(c *Client) *Publisher {
	return &Publisher{js: c.JS, log: c.Log}
}

// Publish sends payload to subject. A non-empty key is attached as the
// JetStream message id, giving the broker a dedup window keyed on the
// record id.
func (p *Publisher) Publish(ctx context.Context, subject, key string, payload []byte) error {
	opts := []nats.PubOpt{nats.Context(ctx)}
	if key != "" {
		opts = append(opts, nats.MsgId(key))
	}

	op := func() error {
		if _, err := p.js.Publish(subject, payload, opts...); err != nil {
			p.log.Warn("publish failed, retrying",
				zap.String("subject", subject),
				zap.Error(err),
			)
			return err
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(time.Second), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}
