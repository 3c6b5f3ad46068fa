package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cdrflow/cdrflow/internal/fraud"
	"github.com/cdrflow/cdrflow/internal/schema"
)

func allEnabled() Options {
	return Options{FraudDetection: true, NetworkData: true, ClientData: true, FraudThreshold: 0.5}
}

func standardVoiceRecord() *schema.UnifiedRecord {
	return &schema.UnifiedRecord{
		CDRID:           "cdr-low",
		IMSI:            "208150123456789",
		MSISDN:          "+33612345678",
		EventType:       schema.EventVoice,
		ServiceType:     schema.ServiceStandard,
		StartTimestamp:  time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
		DurationSeconds: schema.Ptr[int64](120),
		CountryCode:     "FR",
		MCC:             schema.Ptr("208"),
		MNC:             schema.Ptr("15"),
		CallType:        schema.Ptr(schema.CallMobile),
	}
}

func TestEnrich_StandardVoiceIsLowRisk(t *testing.T) {
	e := NewEnricher(allEnabled(), fraud.NewRuleScorer(), zaptest.NewLogger(t))

	out := e.Enrich(standardVoiceRecord())

	require.NotNil(t, out.FraudInfo)
	assert.Equal(t, schema.RiskLow, out.FraudInfo.RiskLevel)
	assert.False(t, out.FraudInfo.IsFraud)
	assert.Empty(t, out.FraudInfo.Reasons)
	assert.Equal(t, "fraud_rules_v1", out.FraudInfo.ModelVersion)

	require.NotNil(t, out.NetworkInfo)
	assert.Equal(t, "Orange France", out.NetworkInfo.NetworkName)
	assert.Equal(t, "5G", out.NetworkInfo.NetworkType)

	require.NotNil(t, out.ClientInfo)
	assert.Equal(t, "individual", out.ClientInfo.SubscriberSegment)
	assert.Equal(t, "prepaid", out.ClientInfo.ContractType)
	assert.False(t, out.ClientInfo.IsVIP)

	assert.Equal(t, Version, out.EnrichmentVersion)
	assert.NotEmpty(t, out.EnrichmentTimestamp)
	assert.Equal(t, "cdr-low", out.CDRID)
}

func TestEnrich_RoamingDataBurstIsHighRisk(t *testing.T) {
	rec := &schema.UnifiedRecord{
		CDRID:           "cdr-high",
		IMSI:            "605020123456789",
		MSISDN:          "+21620123456",
		EventType:       schema.EventData,
		ServiceType:     schema.ServiceRoaming,
		StartTimestamp:  time.Date(2024, 3, 2, 23, 30, 0, 0, time.UTC),
		DurationSeconds: schema.Ptr[int64](7200),
		CountryCode:     "TN",
		IsRoaming:       true,
		VisitedCountry:  schema.Ptr("XX"),
		BytesUploaded:   schema.Ptr[int64](15_000_000_000),
		BytesDownloaded: schema.Ptr[int64](5_000_000_000),
	}

	e := NewEnricher(allEnabled(), fraud.NewRuleScorer(), zaptest.NewLogger(t))
	out := e.Enrich(rec)

	require.NotNil(t, out.FraudInfo)
	assert.GreaterOrEqual(t, out.FraudInfo.FraudScore, 0.7)
	assert.True(t, out.FraudInfo.IsFraud)
	assert.Equal(t, schema.RiskHigh, out.FraudInfo.RiskLevel)
	assert.Contains(t, out.FraudInfo.Reasons, "intl_roaming")
	assert.Contains(t, out.FraudInfo.Reasons, "cost_anomaly")
}

func TestEnrich_DisabledEnrichersLeaveSidecarsNil(t *testing.T) {
	e := NewEnricher(Options{}, fraud.NewRuleScorer(), zaptest.NewLogger(t))

	out := e.Enrich(standardVoiceRecord())

	assert.Nil(t, out.FraudInfo)
	assert.Nil(t, out.NetworkInfo)
	assert.Nil(t, out.ClientInfo)
	assert.Equal(t, Version, out.EnrichmentVersion)
}

func TestEnrich_NilScorerSkipsFraudSidecar(t *testing.T) {
	e := NewEnricher(allEnabled(), nil, zaptest.NewLogger(t))

	out := e.Enrich(standardVoiceRecord())

	assert.Nil(t, out.FraudInfo)
	assert.NotNil(t, out.NetworkInfo)
	assert.NotNil(t, out.ClientInfo)
}

type panicScorer struct{}

func (panicScorer) Score([]float64) (float64, []string) { panic("model exploded") }
func (panicScorer) ScoreBatch([][]float64) []float64    { panic("model exploded") }
func (panicScorer) ModelID() string                     { return "boom" }

func TestEnrich_ScorerPanicStillEmitsRecord(t *testing.T) {
	e := NewEnricher(allEnabled(), panicScorer{}, zaptest.NewLogger(t))

	out := e.Enrich(standardVoiceRecord())

	require.NotNil(t, out)
	assert.Nil(t, out.FraudInfo)
	assert.NotNil(t, out.NetworkInfo)
}

func TestNetworkEnricher_OperatorTable(t *testing.T) {
	tests := []struct {
		name string
		mcc  *string
		mnc  *string
		want string
	}{
		{"orange", schema.Ptr("208"), schema.Ptr("15"), "Orange France"},
		{"sfr", schema.Ptr("208"), schema.Ptr("01"), "SFR"},
		{"bouygues", schema.Ptr("208"), schema.Ptr("20"), "Bouygues Telecom"},
		{"french mvno", schema.Ptr("208"), schema.Ptr("88"), "Unknown Network"},
		{"tunisie any mnc", schema.Ptr("605"), schema.Ptr("02"), "Tunisie Telecom"},
		{"elisa", schema.Ptr("244"), nil, "Elisa Finland"},
		{"swisscom", schema.Ptr("228"), schema.Ptr("01"), "Swisscom"},
		{"no mcc", nil, nil, "Unknown Network"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &schema.UnifiedRecord{
				MCC:            tt.mcc,
				MNC:            tt.mnc,
				StartTimestamp: time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC),
			}
			info := NetworkEnricher{}.Lookup(rec)
			assert.Equal(t, tt.want, info.NetworkName)
			assert.Equal(t, "4G", info.NetworkType)
		})
	}
}

func TestNetworkEnricher_HandoverAndLocation(t *testing.T) {
	rec := &schema.UnifiedRecord{
		StartTimestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DurationSeconds: schema.Ptr[int64](900),
		CellID:          schema.Ptr("A42"),
	}
	info := NetworkEnricher{}.Lookup(rec)

	assert.EqualValues(t, 2, *info.HandoverCount)
	require.NotNil(t, info.CellTowerLocation)
	assert.EqualValues(t, -75, *info.SignalStrength)

	short := NetworkEnricher{}.Lookup(&schema.UnifiedRecord{StartTimestamp: rec.StartTimestamp})
	assert.EqualValues(t, 0, *short.HandoverCount)
	assert.Nil(t, short.CellTowerLocation)
}

func TestSubscriberEnricher(t *testing.T) {
	business := SubscriberEnricher{}.Lookup(&schema.UnifiedRecord{IMSI: "208150123456000"})
	assert.Equal(t, "business", business.SubscriberSegment)
	assert.True(t, business.IsVIP)
	assert.Equal(t, 5000.0, *business.LifetimeValue)

	individual := SubscriberEnricher{}.Lookup(&schema.UnifiedRecord{IMSI: "208150123456789", IsRoaming: true})
	assert.Equal(t, "individual", individual.SubscriberSegment)
	assert.Equal(t, "postpaid", individual.ContractType)
	assert.Equal(t, 500.0, *individual.LifetimeValue)
	assert.EqualValues(t, 50_000, *individual.DataPlanLimitMB)
}
