// Package normalize maps validated records from their heterogeneous source
// shapes onto the canonical unified schema.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/cdrflow/cdrflow/internal/schema"
)

// homeMCC maps an origin country to its home mobile country code. Records
// from countries outside this table are never flagged as roaming.
var homeMCC = map[string]string{
	"FR": "208",
	"TN": "605",
	"FN": "244",
	"CH": "228",
}

// Normalizer derives the UnifiedRecord from a ValidatedRecord plus the
// uninterpreted raw_data document. Stateless and safe for concurrent use.
type Normalizer struct{}

// NewNormalizer builds a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize applies the derivation rules. Event-specific fields are set only
// for the matching event type; everything else stays nil.
func (n *Normalizer) Normalize(rec *schema.ValidatedRecord, doc map[string]any) *schema.UnifiedRecord {
	u := &schema.UnifiedRecord{
		CDRID:                  rec.CDRID,
		IMSI:                   rec.IMSI,
		MSISDN:                 rec.MSISDN,
		EventType:              rec.EventType,
		ServiceType:            serviceClass(doc),
		StartTimestamp:         rec.Timestamp,
		CountryCode:            rec.Country,
		IngestionTimestamp:     rec.IngestionTimestamp,
		NormalizationTimestamp: time.Now().UTC().Format(time.RFC3339),
		SourceSystem:           stringOr(doc, "source_system", "unknown"),
		RawDataHash:            ContentHash(rec.RawData),
	}

	if len(rec.IMSI) >= 5 {
		u.MCC = schema.Ptr(rec.IMSI[:3])
		u.MNC = schema.Ptr(rec.IMSI[3:5])
	}

	liftCommon(u, doc)
	detectRoaming(u)

	switch rec.EventType {
	case schema.EventVoice:
		liftVoice(u, doc)
	case schema.EventData:
		liftData(u, doc)
	case schema.EventSMS:
		liftSMS(u, doc)
	}

	return u
}

// ContentHash is the 64-bit stable hash of the verbatim raw document,
// rendered as zero-padded lower-case hex.
func ContentHash(raw []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}

// serviceClass is first-match: premium, then roaming, then emergency,
// defaulting to standard.
func serviceClass(doc map[string]any) schema.ServiceType {
	switch {
	case truthy(doc["is_premium"]):
		return schema.ServicePremium
	case truthy(doc["is_roaming"]):
		return schema.ServiceRoaming
	case truthy(doc["is_emergency"]):
		return schema.ServiceEmergency
	default:
		return schema.ServiceStandard
	}
}

func liftCommon(u *schema.UnifiedRecord, doc map[string]any) {
	u.SessionID = liftString(doc, "session_id")
	u.IMEI = liftString(doc, "imei")
	u.LAC = liftString(doc, "lac")
	u.CellID = liftString(doc, "cell_id")
	u.VisitedCountry = liftString(doc, "visited_country")
	u.VisitedNetwork = liftString(doc, "visited_network")
	u.ChargingID = liftString(doc, "charging_id")
	u.Currency = liftString(doc, "currency")

	if v, ok := numberField(doc, "rated_amount", "amount"); ok {
		u.RatedAmount = schema.Ptr(v)
	}
	if s, ok := stringField(doc, "end_timestamp"); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			u.EndTimestamp = schema.Ptr(ts.UTC())
		}
	}
}

// detectRoaming compares the IMSI-derived MCC against the home MCC of the
// origin country. Countries outside the home table never roam.
func detectRoaming(u *schema.UnifiedRecord) {
	home, known := homeMCC[u.CountryCode]
	if !known || u.MCC == nil {
		return
	}
	u.IsRoaming = *u.MCC != home
}

func liftVoice(u *schema.UnifiedRecord, doc map[string]any) {
	u.CallingNumber = schema.Ptr(stringOr(doc, "calling_number", u.MSISDN))
	if s, ok := stringField(doc, "called_number"); ok {
		u.CalledNumber = schema.Ptr(s)
	} else if s, ok := stringField(doc, "destination"); ok {
		u.CalledNumber = schema.Ptr(s)
	}
	u.CallType = schema.Ptr(callType(doc))
	if v, ok := numberField(doc, "duration", "duration_seconds"); ok {
		u.DurationSeconds = schema.Ptr(int64(v))
	}
}

func callType(doc map[string]any) schema.CallType {
	s, ok := stringField(doc, "call_type")
	if !ok {
		return schema.CallMobile
	}
	switch strings.ToLower(s) {
	case "mobile":
		return schema.CallMobile
	case "landline", "fixed":
		return schema.CallLandline
	case "international":
		return schema.CallInternational
	case "emergency":
		return schema.CallEmergency
	default:
		return schema.CallUnknown
	}
}

func liftData(u *schema.UnifiedRecord, doc map[string]any) {
	if v, ok := numberField(doc, "bytes_uploaded", "bytes_up"); ok {
		u.BytesUploaded = schema.Ptr(int64(v))
	}
	if v, ok := numberField(doc, "bytes_downloaded", "bytes_down"); ok {
		u.BytesDownloaded = schema.Ptr(int64(v))
	}
	u.APN = liftString(doc, "apn")
	if v, ok := numberField(doc, "duration", "duration_seconds"); ok {
		u.DurationSeconds = schema.Ptr(int64(v))
	}
}

func liftSMS(u *schema.UnifiedRecord, doc map[string]any) {
	u.SMSType = schema.Ptr(smsDirection(doc))
	if v, ok := numberField(doc, "message_length", "length"); ok {
		u.MessageLength = schema.Ptr(int64(v))
	}
}

func smsDirection(doc map[string]any) schema.SMSDirection {
	s, ok := stringField(doc, "sms_type")
	if !ok {
		return schema.SMSMobileOriginated
	}
	switch strings.ToLower(s) {
	case "mo", "mo_sms":
		return schema.SMSMobileOriginated
	case "mt", "mt_sms":
		return schema.SMSMobileTerminated
	default:
		return schema.SMSUnknown
	}
}

func stringField(doc map[string]any, key string) (string, bool) {
	v, ok := doc[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func stringOr(doc map[string]any, key, fallback string) string {
	if s, ok := stringField(doc, key); ok {
		return s
	}
	return fallback
}

func liftString(doc map[string]any, key string) *string {
	if s, ok := stringField(doc, key); ok {
		return schema.Ptr(s)
	}
	return nil
}

// numberField reads the first present key as a float64. JSON numbers decode
// to float64 in a map[string]any.
func numberField(doc map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := doc[key].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t == "true" || t == "1" || t == "yes"
	default:
		return false
	}
}
