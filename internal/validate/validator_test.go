package validate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdrflow/cdrflow/internal/schema"
)

func processed(payload string) *schema.ProcessedRecord {
	return &schema.ProcessedRecord{
		RawPayload:         payload,
		Format:             schema.FormatJSON,
		SourceTopic:        "cdr.raw.FR",
		Country:            "FR",
		IngestionTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func TestValidate_Success(t *testing.T) {
	v := NewValidator()

	payload := `{"imsi":"20815012345678","msisdn":"+33612345678","event_type":"voice","timestamp":"2024-01-15T14:00:00Z","duration":120}`
	rec, reject := v.Validate(processed(payload))

	require.Nil(t, reject)
	require.NotNil(t, rec)
	assert.Equal(t, "20815012345678", rec.IMSI)
	assert.Equal(t, "+33612345678", rec.MSISDN)
	assert.Equal(t, schema.EventVoice, rec.EventType)
	assert.Equal(t, "FR", rec.Country)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.JSONEq(t, payload, string(rec.RawData))

	_, err := uuid.Parse(rec.CDRID)
	assert.NoError(t, err)
}

func TestValidate_UniqueIDs(t *testing.T) {
	v := NewValidator()
	payload := `{"imsi":"208150123456789","msisdn":"0612345678"}`

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		rec, reject := v.Validate(processed(payload))
		require.Nil(t, reject)
		assert.False(t, seen[rec.CDRID])
		seen[rec.CDRID] = true
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		errorType string
		field     string
	}{
		{"not json", `208150123456789;+33612345678`, ErrJSONParse, ""},
		{"missing imsi", `{"msisdn":"+33612345678"}`, ErrMissingField, "imsi"},
		{"imsi too short", `{"imsi":"2081501234567","msisdn":"+33612345678"}`, ErrInvalidIMSI, "imsi"},
		{"imsi non-numeric", `{"imsi":"20815012345678X","msisdn":"+33612345678"}`, ErrInvalidIMSI, "imsi"},
		{"missing msisdn", `{"imsi":"20815012345678"}`, ErrMissingField, "msisdn"},
		{"msisdn too short", `{"imsi":"20815012345678","msisdn":"061234567"}`, ErrInvalidMSISDN, "msisdn"},
		{"msisdn bad plus", `{"imsi":"20815012345678","msisdn":"06+12345678"}`, ErrInvalidMSISDN, "msisdn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			rec, reject := v.Validate(processed(tt.payload))

			assert.Nil(t, rec)
			require.NotNil(t, reject)
			assert.Equal(t, tt.errorType, reject.ErrorType)
			assert.Equal(t, tt.field, reject.Field)
			assert.Equal(t, tt.payload, reject.OriginalCDR)
			assert.NotEmpty(t, reject.Timestamp)
		})
	}
}

func TestValidate_OrderingFirstFailureWins(t *testing.T) {
	// Both identifiers invalid: the IMSI check runs first.
	v := NewValidator()
	_, reject := v.Validate(processed(`{"imsi":"abc","msisdn":"xyz"}`))
	require.NotNil(t, reject)
	assert.Equal(t, ErrInvalidIMSI, reject.ErrorType)
}

func TestValidate_UnknownEventTypeNeverRejects(t *testing.T) {
	v := NewValidator()

	for _, payload := range []string{
		`{"imsi":"20815012345678","msisdn":"+33612345678"}`,
		`{"imsi":"20815012345678","msisdn":"+33612345678","event_type":"fax"}`,
	} {
		rec, reject := v.Validate(processed(payload))
		require.Nil(t, reject)
		assert.Equal(t, schema.EventUnknown, rec.EventType)
	}
}

func TestValidate_MintsIDOnlyOnSuccess(t *testing.T) {
	v := NewValidator()

	rec, reject := v.Validate(processed(`{"imsi":"bad","msisdn":"+33612345678"}`))
	assert.Nil(t, rec)
	require.NotNil(t, reject)

	var decoded map[string]any
	b, err := json.Marshal(reject)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.NotContains(t, decoded, "cdr_id")
}

func TestValidate_FallsBackToWallClockTimestamp(t *testing.T) {
	v := NewValidator()

	rec, reject := v.Validate(processed(`{"imsi":"20815012345678","msisdn":"+33612345678","timestamp":"yesterday"}`))
	require.Nil(t, reject)
	assert.WithinDuration(t, time.Now().UTC(), rec.Timestamp, 5*time.Second)
}
