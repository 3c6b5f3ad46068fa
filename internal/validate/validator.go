// Package validate enforces the format contract on processed records and
// routes failures to the dead-letter subject.
package validate

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/cdrflow/cdrflow/internal/schema"
)

// Error kinds carried by ValidationFailure.
const (
	ErrJSONParse     = "json_parse_error"
	ErrMissingField  = "missing_field"
	ErrInvalidIMSI   = "invalid_imsi"
	ErrInvalidMSISDN = "invalid_msisdn"
)

var (
	imsiPattern   = regexp.MustCompile(`^\d{14,15}$`)
	msisdnPattern = regexp.MustCompile(`^\+?\d{10,15}$`)
)

// Validator runs the ordered format checks. Stateless and safe for
// concurrent use.
type Validator struct{}

// NewValidator builds a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks rec in order: JSON decode, IMSI, MSISDN. The first failure
// wins and yields a ValidationFailure; on success a ValidatedRecord is
// returned with a freshly minted id. Exactly one of the two results is
// non-nil. An absent or unrecognised event_type maps to "unknown" and never
// rejects.
func (v *Validator) Validate(rec *schema.ProcessedRecord) (*schema.ValidatedRecord, *schema.ValidationFailure) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(rec.RawPayload), &doc); err != nil {
		return nil, failure(ErrJSONParse, "payload is not a JSON document: "+err.Error(), "", rec)
	}

	imsi, ok := stringField(doc, "imsi")
	if !ok || imsi == "" {
		return nil, failure(ErrMissingField, "imsi is required", "imsi", rec)
	}
	if !imsiPattern.MatchString(imsi) {
		return nil, failure(ErrInvalidIMSI, "imsi must be 14-15 decimal digits", "imsi", rec)
	}

	msisdn, ok := stringField(doc, "msisdn")
	if !ok || msisdn == "" {
		return nil, failure(ErrMissingField, "msisdn is required", "msisdn", rec)
	}
	if !msisdnPattern.MatchString(msisdn) {
		return nil, failure(ErrInvalidMSISDN, "msisdn must be 10-15 digits with optional leading +", "msisdn", rec)
	}

	eventType, _ := stringField(doc, "event_type")

	return &schema.ValidatedRecord{
		CDRID:               uuid.NewString(),
		EventType:           schema.ParseEventType(eventType),
		IMSI:                imsi,
		MSISDN:              msisdn,
		Timestamp:           recordTimestamp(doc),
		Country:             rec.Country,
		RawData:             json.RawMessage(rec.RawPayload),
		IngestionTimestamp:  rec.IngestionTimestamp,
		ValidationTimestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func failure(errType, msg, field string, rec *schema.ProcessedRecord) *schema.ValidationFailure {
	return &schema.ValidationFailure{
		ErrorType:   errType,
		Message:     msg,
		Field:       field,
		OriginalCDR: rec.RawPayload,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func stringField(doc map[string]any, key string) (string, bool) {
	v, ok := doc[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// recordTimestamp lifts the event time from the document, falling back to
// the wall clock when absent or unparseable.
func recordTimestamp(doc map[string]any) time.Time {
	if s, ok := stringField(doc, "timestamp"); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}
