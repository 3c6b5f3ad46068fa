// Package enrich orchestrates the three record enrichers: fraud scoring,
// network lookup and subscriber lookup. Each enricher is toggled by
// configuration and fails independently; a record is always emitted, with
// nil sidecars for whatever was disabled or failed.
package enrich

import (
	"time"

	"go.uber.org/zap"

	"github.com/cdrflow/cdrflow/internal/fraud"
	"github.com/cdrflow/cdrflow/internal/schema"
)

// Version stamps every enriched record.
const Version = "v1.0.0"

// Options selects which enrichers run. FraudThreshold is the score above
// which a record is flagged as fraud.
type Options struct {
	FraudDetection bool
	NetworkData    bool
	ClientData     bool
	FraudThreshold float64
}

// Enricher wraps a UnifiedRecord into an EnrichedRecord.
type Enricher struct {
	opts       Options
	scorer     fraud.Scorer
	stats      fraud.PopulationStats
	network    NetworkEnricher
	subscriber SubscriberEnricher
	logger     *zap.Logger
}

// NewEnricher builds an Enricher. scorer may be nil when fraud detection is
// disabled.
func NewEnricher(opts Options, scorer fraud.Scorer, log *zap.Logger) *Enricher {
	return &Enricher{
		opts:   opts,
		scorer: scorer,
		stats:  fraud.DefaultPopulationStats(),
		logger: log,
	}
}

// Enrich runs the enabled enrichers sequentially and always returns a
// record.
func (e *Enricher) Enrich(rec *schema.UnifiedRecord) *schema.EnrichedRecord {
	enriched := &schema.EnrichedRecord{
		UnifiedRecord:       *rec,
		EnrichmentTimestamp: time.Now().UTC().Format(time.RFC3339),
		EnrichmentVersion:   Version,
	}

	if e.opts.FraudDetection {
		enriched.FraudInfo = e.scoreFraud(rec)
	}
	if e.opts.NetworkData {
		enriched.NetworkInfo = e.network.Lookup(rec)
	}
	if e.opts.ClientData {
		enriched.ClientInfo = e.subscriber.Lookup(rec)
	}

	return enriched
}

// scoreFraud returns nil when no scorer is configured or the model panics;
// the record still progresses.
func (e *Enricher) scoreFraud(rec *schema.UnifiedRecord) (info *schema.FraudInfo) {
	if e.scorer == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fraud scorer panicked, skipping sidecar",
				zap.String("cdr_id", rec.CDRID),
				zap.Any("panic", r),
			)
			info = nil
		}
	}()

	features := fraud.Extract(rec, e.stats)
	score, reasons := e.scorer.Score(features.Vector())

	return &schema.FraudInfo{
		FraudScore:         score,
		IsFraud:            score > e.opts.FraudThreshold,
		RiskLevel:          schema.RiskLevelFor(score),
		Reasons:            reasons,
		ModelVersion:       e.scorer.ModelID(),
		DetectionTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
