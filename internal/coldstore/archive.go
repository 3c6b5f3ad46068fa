// Package coldstore batches enriched records into partitioned Snappy
// parquet files and ships them to the object store.
package coldstore

import (
	"fmt"
	"time"

	"github.com/cdrflow/cdrflow/internal/schema"
)

// ArchiveRecord is the flat columnar row. The archive keeps the analytical
// subset of the enriched record, not the full envelope.
type ArchiveRecord struct {
	ID              string   `parquet:"id"`
	CountryCode     string   `parquet:"country_code"`
	Timestamp       int64    `parquet:"timestamp,timestamp(millisecond)"`
	DurationSeconds int32    `parquet:"duration_seconds"`
	CallType        string   `parquet:"call_type"`
	MSISDNA         string   `parquet:"msisdn_a"`
	MSISDNB         string   `parquet:"msisdn_b"`
	CellID          *string  `parquet:"cell_id,optional"`
	IMSI            *string  `parquet:"imsi,optional"`
	IsFraud         bool     `parquet:"is_fraud"`
	FraudScore      *float64 `parquet:"fraud_score,optional"`
}

// FromEnriched projects rec onto the archive row. The fraud decision bit
// made at enrichment is carried as-is; without a fraud sidecar the bit
// stays false and the score column is NULL.
func FromEnriched(rec *schema.EnrichedRecord) ArchiveRecord {
	row := ArchiveRecord{
		ID:          rec.CDRID,
		CountryCode: rec.CountryCode,
		Timestamp:   rec.StartTimestamp.UnixMilli(),
		CallType:    callTypeColumn(rec),
		MSISDNA:     rec.MSISDN,
		CellID:      rec.CellID,
		IMSI:        schema.Ptr(rec.IMSI),
	}
	if rec.CallingNumber != nil {
		row.MSISDNA = *rec.CallingNumber
	}
	if rec.CalledNumber != nil {
		row.MSISDNB = *rec.CalledNumber
	}
	if rec.DurationSeconds != nil {
		row.DurationSeconds = int32(*rec.DurationSeconds)
	}
	if f := rec.FraudInfo; f != nil {
		row.FraudScore = schema.Ptr(f.FraudScore)
		row.IsFraud = f.IsFraud
	}
	return row
}

// callTypeColumn falls back to the event type for non-voice records so the
// column is never empty.
func callTypeColumn(rec *schema.EnrichedRecord) string {
	if rec.CallType != nil {
		return string(*rec.CallType)
	}
	return string(rec.EventType)
}

// PartitionKey renders the Hive-style partition directory for the row,
// derived from its start timestamp in UTC.
func (r ArchiveRecord) PartitionKey() string {
	ts := time.UnixMilli(r.Timestamp).UTC()
	return fmt.Sprintf("year=%04d/month=%02d/day=%02d/country=%s",
		ts.Year(), int(ts.Month()), ts.Day(), r.CountryCode)
}
