package fraud

import (
	"github.com/cdrflow/cdrflow/internal/schema"
)

// PopulationStats are the reference distributions for z-score features.
// They are deployment configuration, not learned state: the defaults match
// typical residential traffic.
type PopulationStats struct {
	DurationMean float64
	DurationStd  float64
	CostMean     float64
	CostStd      float64
	// With no rated amount on a data record, session volume stands in for
	// cost; these are in gigabytes.
	VolumeMeanGB float64
	VolumeStdGB  float64
}

// DefaultPopulationStats returns the reference distributions used when no
// deployment-specific values are configured.
func DefaultPopulationStats() PopulationStats {
	return PopulationStats{
		DurationMean: 300,
		DurationStd:  600,
		CostMean:     5,
		CostStd:      10,
		VolumeMeanGB: 0.5,
		VolumeStdGB:  2,
	}
}

// nominalSignal is assumed when no measured signal is available; it keeps
// the low-signal rule from firing on records without network data.
const nominalSignal = 0.75

// Extract builds the scoring features for one unified record.
//
// International is true for an explicit international call type, or for a
// roaming session whose visited country differs from the origin country.
// Behavioral features (daily counts, unique destinations, frequency) are
// zero without a subscriber profile store.
func Extract(rec *schema.UnifiedRecord, stats PopulationStats) Features {
	f := Features{SignalStrength: nominalSignal}

	var duration float64
	if rec.DurationSeconds != nil {
		duration = float64(*rec.DurationSeconds)
	}
	f.DurationSeconds = duration
	f.DurationZScore = zscore(duration, stats.DurationMean, stats.DurationStd)

	if rec.CallType != nil && *rec.CallType == schema.CallInternational {
		f.IsInternational = 1
	}
	if rec.IsRoaming {
		f.IsRoaming = 1
		if rec.VisitedCountry != nil && *rec.VisitedCountry != rec.CountryCode {
			f.IsInternational = 1
		}
	}
	if rec.ServiceType == schema.ServicePremium {
		f.IsPremium = 1
	}

	start := rec.StartTimestamp.UTC()
	f.HourOfDay = float64(start.Hour())
	f.DayOfWeek = float64(start.Weekday())
	if wd := start.Weekday(); wd == 0 || wd == 6 {
		f.IsWeekend = 1
	}
	if h := start.Hour(); h >= 22 || h < 6 {
		f.IsNightCall = 1
	}

	if rec.RatedAmount != nil {
		f.CostZScore = zscore(*rec.RatedAmount, stats.CostMean, stats.CostStd)
	} else if rec.BytesUploaded != nil || rec.BytesDownloaded != nil {
		var total int64
		if rec.BytesUploaded != nil {
			total += *rec.BytesUploaded
		}
		if rec.BytesDownloaded != nil {
			total += *rec.BytesDownloaded
		}
		gb := float64(total) / 1e9
		f.CostZScore = zscore(gb, stats.VolumeMeanGB, stats.VolumeStdGB)
	}

	return f
}

func zscore(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}
