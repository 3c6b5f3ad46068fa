package broker

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// StreamCDREvents is the durable stream carrying every pipeline topic.
	StreamCDREvents = "CDR_EVENTS"
	// SubjectRoot is the wildcard subject hierarchy captured by the stream.
	SubjectRoot = "cdr.>"
)

// Default pipeline subjects. Every stage can override its own input and
// output via configuration; these are the conventional names.
const (
	SubjectRawWildcard = "cdr.raw.*"
	SubjectProcessed   = "cdr.processed"
	SubjectValidated   = "cdr.validated"
	SubjectRejected    = "cdr.rejected"
	SubjectNormalized  = "cdr.normalized"
	SubjectEnriched    = "cdr.enriched"
	SubjectStored      = "cdr.stored"
)

// ProvisionStream idempotently creates the CDR_EVENTS stream. Every stage
// calls this at startup so ordering of process launches does not matter.
func (c *Client) ProvisionStream() error {
	_, err := c.JS.StreamInfo(StreamCDREvents)
	if err == nil {
		c.Log.Info("NATS stream exists", zap.String("stream", StreamCDREvents))
		return nil
	}

	if err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to check stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamCDREvents,
		Subjects:  []string{SubjectRoot},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}

	if _, err := c.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	c.Log.Info("NATS stream provisioned", zap.String("stream", StreamCDREvents))
	return nil
}
