// Package schema holds the record envelopes that flow between pipeline
// stages. Each type contains or extends the previous one: a ProcessedRecord
// becomes a ValidatedRecord, which is mapped onto the canonical
// UnifiedRecord, which the enrichment stage wraps into an EnrichedRecord.
// Raw, Processed and Validated records live only on the broker between
// adjacent stages; Unified and Enriched are the durable shapes.
package schema

import (
	"encoding/json"
	"time"
)

// EventType classifies the chargeable event described by a CDR.
type EventType string

const (
	EventVoice   EventType = "voice"
	EventData    EventType = "data"
	EventSMS     EventType = "sms"
	EventUnknown EventType = "unknown"
)

// ParseEventType maps an arbitrary upstream event_type value onto the
// closed enum. Absent or unrecognised values become EventUnknown and never
// cause a rejection.
func ParseEventType(s string) EventType {
	switch EventType(s) {
	case EventVoice, EventData, EventSMS:
		return EventType(s)
	default:
		return EventUnknown
	}
}

// ServiceType is the commercial service class of a record.
type ServiceType string

const (
	ServiceStandard  ServiceType = "standard"
	ServicePremium   ServiceType = "premium"
	ServiceRoaming   ServiceType = "roaming"
	ServiceEmergency ServiceType = "emergency"
	ServiceUnknown   ServiceType = "unknown"
)

// CallType classifies a voice call.
type CallType string

const (
	CallMobile        CallType = "mobile"
	CallLandline      CallType = "landline"
	CallInternational CallType = "international"
	CallEmergency     CallType = "emergency"
	CallUnknown       CallType = "unknown"
)

// SMSDirection is mobile-originated or mobile-terminated.
type SMSDirection string

const (
	SMSMobileOriginated SMSDirection = "mo"
	SMSMobileTerminated SMSDirection = "mt"
	SMSUnknown          SMSDirection = "unknown"
)

// Payload format tags for ProcessedRecord.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// ProcessedRecord is a raw broker payload after the ingestion stage decoded
// it. The payload is kept verbatim; Format tags the variant (structured JSON
// document or plain UTF-8 text). Country is derived from the source subject,
// never from the payload itself.
type ProcessedRecord struct {
	RawPayload         string `json:"raw_payload"`
	Format             string `json:"format"`
	SourceTopic        string `json:"source_topic"`
	Country            string `json:"country"`
	IngestionTimestamp string `json:"ingestion_timestamp"`
}

// ValidatedRecord is a ProcessedRecord whose JSON form passed the format
// checks. CDRID is minted exactly once here and preserved unchanged by every
// downstream stage. RawData retains the entire pre-validation document
// verbatim so that later stages can lift fields the validator does not
// interpret.
type ValidatedRecord struct {
	CDRID               string          `json:"cdr_id"`
	EventType           EventType       `json:"event_type"`
	IMSI                string          `json:"imsi"`
	MSISDN              string          `json:"msisdn"`
	Timestamp           time.Time       `json:"timestamp"`
	Country             string          `json:"country"`
	RawData             json.RawMessage `json:"raw_data"`
	IngestionTimestamp  string          `json:"ingestion_timestamp"`
	ValidationTimestamp string          `json:"validation_timestamp"`
}

// ValidationFailure is the dead-letter envelope published to the rejected
// subject. OriginalCDR carries the offending payload verbatim.
type ValidationFailure struct {
	ErrorType   string `json:"error_type"`
	Message     string `json:"message"`
	Field       string `json:"field,omitempty"`
	OriginalCDR string `json:"original_cdr"`
	Timestamp   string `json:"timestamp"`
}

// UnifiedRecord is the canonical schema every upstream variant is mapped to.
// Event-specific fields are pointers and are set only when EventType
// matches; otherwise they stay nil (absent on the wire), never zero.
type UnifiedRecord struct {
	// Identifiers
	CDRID     string  `json:"cdr_id"`
	SessionID *string `json:"session_id,omitempty"`
	IMSI      string  `json:"imsi"`
	MSISDN    string  `json:"msisdn"`
	IMEI      *string `json:"imei,omitempty"`

	// Classification
	EventType   EventType   `json:"event_type"`
	ServiceType ServiceType `json:"service_type"`

	// Temporal
	StartTimestamp  time.Time  `json:"start_timestamp"`
	EndTimestamp    *time.Time `json:"end_timestamp,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`

	// Location
	CountryCode string  `json:"country_code"`
	MCC         *string `json:"mcc,omitempty"`
	MNC         *string `json:"mnc,omitempty"`
	LAC         *string `json:"lac,omitempty"`
	CellID      *string `json:"cell_id,omitempty"`

	// Voice
	CallingNumber *string   `json:"calling_number,omitempty"`
	CalledNumber  *string   `json:"called_number,omitempty"`
	CallType      *CallType `json:"call_type,omitempty"`

	// Data
	BytesUploaded   *int64  `json:"bytes_uploaded,omitempty"`
	BytesDownloaded *int64  `json:"bytes_downloaded,omitempty"`
	APN             *string `json:"apn,omitempty"`

	// SMS
	SMSType       *SMSDirection `json:"sms_type,omitempty"`
	MessageLength *int64        `json:"message_length,omitempty"`

	// Roaming
	IsRoaming      bool    `json:"is_roaming"`
	VisitedCountry *string `json:"visited_country,omitempty"`
	VisitedNetwork *string `json:"visited_network,omitempty"`

	// Accounting
	ChargingID  *string  `json:"charging_id,omitempty"`
	RatedAmount *float64 `json:"rated_amount,omitempty"`
	Currency    *string  `json:"currency,omitempty"`

	// Provenance
	IngestionTimestamp     string `json:"ingestion_timestamp"`
	NormalizationTimestamp string `json:"normalization_timestamp"`
	SourceSystem           string `json:"source_system"`
	RawDataHash            string `json:"raw_data_hash"`
}

// FraudInfo is the fraud-scoring sidecar. IsFraud is the binary decision
// (score above the configured threshold) that downstream stores carry as-is.
type FraudInfo struct {
	FraudScore         float64  `json:"fraud_score"`
	IsFraud            bool     `json:"is_fraud"`
	RiskLevel          string   `json:"risk_level"`
	Reasons            []string `json:"reasons"`
	ModelVersion       string   `json:"model_version"`
	DetectionTimestamp string   `json:"detection_timestamp"`
}

// Risk bands derived from the fraud score.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskLevelFor bands a fraud score: >=0.7 high, >=0.4 medium, else low.
func RiskLevelFor(score float64) string {
	switch {
	case score >= 0.7:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// NetworkInfo is the network-lookup sidecar.
type NetworkInfo struct {
	NetworkName       string  `json:"network_name"`
	NetworkType       string  `json:"network_type"`
	CellTowerLocation *string `json:"cell_tower_location,omitempty"`
	SignalStrength    *int32  `json:"signal_strength,omitempty"`
	HandoverCount     *int32  `json:"handover_count,omitempty"`
}

// ClientInfo is the subscriber-lookup sidecar.
type ClientInfo struct {
	SubscriberSegment string   `json:"subscriber_segment"`
	ContractType      string   `json:"contract_type"`
	CustomerSince     *string  `json:"customer_since,omitempty"`
	LifetimeValue     *float64 `json:"lifetime_value,omitempty"`
	IsVIP             bool     `json:"is_vip"`
	DataPlanLimitMB   *int64   `json:"data_plan_limit_mb,omitempty"`
}

// EnrichedRecord is a UnifiedRecord plus up to three optional sidecars. A
// nil sidecar means the corresponding enricher was disabled or failed; the
// record itself is always emitted.
type EnrichedRecord struct {
	UnifiedRecord

	FraudInfo   *FraudInfo   `json:"fraud_info,omitempty"`
	NetworkInfo *NetworkInfo `json:"network_info,omitempty"`
	ClientInfo  *ClientInfo  `json:"client_info,omitempty"`

	EnrichmentTimestamp string `json:"enrichment_timestamp"`
	EnrichmentVersion   string `json:"enrichment_version"`
}

// Ptr returns a pointer to v. Convenience for the optional schema fields.
func Ptr[T any](v T) *T { return &v }
