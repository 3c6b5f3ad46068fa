package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	assert.Equal(t, EventVoice, ParseEventType("voice"))
	assert.Equal(t, EventData, ParseEventType("data"))
	assert.Equal(t, EventSMS, ParseEventType("sms"))
	assert.Equal(t, EventUnknown, ParseEventType(""))
	assert.Equal(t, EventUnknown, ParseEventType("fax"))
	assert.Equal(t, EventUnknown, ParseEventType("VOICE"))
}

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.0, RiskLow},
		{0.39, RiskLow},
		{0.4, RiskMedium},
		{0.69, RiskMedium},
		{0.7, RiskHigh},
		{1.0, RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevelFor(tt.score), "score %v", tt.score)
	}
}

func TestEnrichedRecord_RoundTrip(t *testing.T) {
	rec := EnrichedRecord{
		UnifiedRecord: UnifiedRecord{
			CDRID:                  "018f2c3a-0000-4000-8000-000000000001",
			SessionID:              Ptr("sess-9"),
			IMSI:                   "208150123456789",
			MSISDN:                 "+33612345678",
			EventType:              EventVoice,
			ServiceType:            ServicePremium,
			StartTimestamp:         time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
			EndTimestamp:           Ptr(time.Date(2024, 1, 15, 14, 3, 5, 0, time.UTC)),
			DurationSeconds:        Ptr[int64](185),
			CountryCode:            "FR",
			MCC:                    Ptr("208"),
			MNC:                    Ptr("15"),
			CallingNumber:          Ptr("+33612345678"),
			CalledNumber:           Ptr("+33698765432"),
			CallType:               Ptr(CallInternational),
			IsRoaming:              true,
			VisitedCountry:         Ptr("CH"),
			RatedAmount:            Ptr(4.25),
			Currency:               Ptr("EUR"),
			IngestionTimestamp:     "2024-01-15T14:00:01Z",
			NormalizationTimestamp: "2024-01-15T14:00:02Z",
			SourceSystem:           "unknown",
			RawDataHash:            "00000000deadbeef",
		},
		FraudInfo: &FraudInfo{
			FraudScore:   0.75,
			RiskLevel:    RiskHigh,
			Reasons:      []string{"intl_roaming"},
			ModelVersion: "fraud_rules_v1",
		},
		NetworkInfo: &NetworkInfo{
			NetworkName:    "Orange France",
			NetworkType:    "5G",
			SignalStrength: Ptr[int32](-75),
		},
		EnrichmentTimestamp: "2024-01-15T14:00:03Z",
		EnrichmentVersion:   "v1.0.0",
	}

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var got EnrichedRecord
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, rec, got)
}

func TestUnifiedRecord_AbsentFieldsStayOffTheWire(t *testing.T) {
	rec := UnifiedRecord{
		CDRID:          "cdr-1",
		IMSI:           "208150123456789",
		MSISDN:         "+33612345678",
		EventType:      EventVoice,
		ServiceType:    ServiceStandard,
		StartTimestamp: time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
		CountryCode:    "FR",
	}

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))

	for _, absent := range []string{
		"bytes_uploaded", "bytes_downloaded", "apn",
		"sms_type", "message_length",
		"call_type", "calling_number", "called_number",
		"visited_country", "rated_amount",
	} {
		assert.NotContains(t, doc, absent)
	}
	assert.Contains(t, doc, "is_roaming")
	assert.Contains(t, doc, "cdr_id")
}

func TestEnrichedRecord_NilSidecarsOmitted(t *testing.T) {
	rec := EnrichedRecord{
		UnifiedRecord:       UnifiedRecord{CDRID: "cdr-1"},
		EnrichmentTimestamp: "2024-01-15T14:00:03Z",
		EnrichmentVersion:   "v1.0.0",
	}

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.NotContains(t, doc, "fraud_info")
	assert.NotContains(t, doc, "network_info")
	assert.NotContains(t, doc, "client_info")
}
