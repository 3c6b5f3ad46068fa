// Package ingest decodes raw CDR payloads from the per-country raw
// subjects and tags them with their origin country.
package ingest

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cdrflow/cdrflow/internal/schema"
)

// CountryUnknown is the sentinel for subjects that carry no country segment.
const CountryUnknown = "UNKNOWN"

// CountryFromSubject extracts the origin country from a raw subject name:
// the last dot-segment, upper-cased ("cdr.raw.fr" -> "FR"). A subject with
// no dot yields CountryUnknown. The origin country is always this tag,
// never a value inside the payload.
func CountryFromSubject(subject string) string {
	idx := strings.LastIndexByte(subject, '.')
	if idx < 0 || idx == len(subject)-1 {
		return CountryUnknown
	}
	return strings.ToUpper(subject[idx+1:])
}

// Processor decodes one raw payload per call. Decode policy: structured
// JSON first, UTF-8 text as fallback, drop everything else. A dropped
// message increments the decode-error counter and never halts the stream.
type Processor struct {
	log *zap.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(log *zap.Logger) *Processor {
	return &Processor{log: log}
}

// Process decodes payload read from subject. Returns nil when the payload
// is not valid UTF-8 (poison pill, drop).
func (p *Processor) Process(payload []byte, subject string) *schema.ProcessedRecord {
	if len(payload) == 0 {
		p.log.Error("empty payload, dropping", zap.String("subject", subject))
		return nil
	}

	format := schema.FormatJSON
	if !json.Valid(payload) {
		if !utf8.Valid(payload) {
			p.log.Error("payload is neither JSON nor UTF-8 text, dropping",
				zap.String("subject", subject),
				zap.Int("bytes", len(payload)),
			)
			return nil
		}
		format = schema.FormatText
	}

	rec := &schema.ProcessedRecord{
		RawPayload:         string(payload),
		Format:             format,
		SourceTopic:        subject,
		Country:            CountryFromSubject(subject),
		IngestionTimestamp: time.Now().UTC().Format(time.RFC3339),
	}

	p.log.Info("processed raw CDR",
		zap.String("subject", subject),
		zap.String("country", rec.Country),
		zap.String("format", format),
	)
	return rec
}
