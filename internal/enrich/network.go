package enrich

import (
	"github.com/cdrflow/cdrflow/internal/schema"
)

// nominalSignalDBm is the signal level reported by the static lookup until a
// live network probe feeds real measurements.
const nominalSignalDBm = -75

// cellTowerLocation is the placeholder coordinate attached when a cell id is
// present.
const cellTowerLocation = "48.8566,2.3522"

// NetworkEnricher resolves operator data from the record's (MCC, MNC). The
// table is static: identical inputs always yield identical outputs.
type NetworkEnricher struct{}

// Lookup never fails; unmatched codes resolve to "Unknown Network".
func (NetworkEnricher) Lookup(rec *schema.UnifiedRecord) *schema.NetworkInfo {
	info := &schema.NetworkInfo{
		NetworkName:    networkName(rec.MCC, rec.MNC),
		NetworkType:    networkType(rec),
		SignalStrength: schema.Ptr[int32](nominalSignalDBm),
		HandoverCount:  schema.Ptr(handoverCount(rec)),
	}
	if rec.CellID != nil {
		info.CellTowerLocation = schema.Ptr(cellTowerLocation)
	}
	return info
}

func networkName(mcc, mnc *string) string {
	if mcc == nil {
		return "Unknown Network"
	}
	switch *mcc {
	case "208":
		if mnc == nil {
			return "Unknown Network"
		}
		switch *mnc {
		case "15":
			return "Orange France"
		case "01":
			return "SFR"
		case "20":
			return "Bouygues Telecom"
		}
		return "Unknown Network"
	case "605":
		return "Tunisie Telecom"
	case "244":
		return "Elisa Finland"
	case "228":
		return "Swisscom"
	}
	return "Unknown Network"
}

func networkType(rec *schema.UnifiedRecord) string {
	if rec.StartTimestamp.Year() >= 2024 {
		return "5G"
	}
	return "4G"
}

// Long calls cross cells; anything over ten minutes is assumed to have
// handed over twice.
func handoverCount(rec *schema.UnifiedRecord) int32 {
	if rec.DurationSeconds != nil && *rec.DurationSeconds > 600 {
		return 2
	}
	return 0
}
