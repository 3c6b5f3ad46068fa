// Package fraud scores call detail records for fraud. A Scorer maps a
// fixed-length feature vector to a probability in [0,1] plus the reason
// tags it attributes to the decision. Two implementations exist: a linear
// (logistic) model loaded from a weights file, and a deterministic
// rule-based fallback. Both are immutable after construction and safe for
// concurrent use.
package fraud

// FeatureCount is the fixed length of every feature vector.
const FeatureCount = 16

// Vector indices. Order is part of the model contract: weight files are
// trained against exactly this layout.
const (
	IdxDurationSeconds = iota
	IdxIsInternational
	IdxIsPremium
	IdxIsRoaming
	IdxHourOfDay
	IdxDayOfWeek
	IdxIsWeekend
	IdxIsNightCall
	IdxDailyCallCount
	IdxDailyCallDuration
	IdxUniqueDestinations
	IdxCallFrequencyPerHour
	IdxCellTowerChanges
	IdxSignalStrength
	IdxDurationZScore
	IdxCostZScore
)

// FeatureNames maps vector indices to stable names, used for linear-model
// reason attribution.
var FeatureNames = [FeatureCount]string{
	"duration_seconds",
	"is_international",
	"is_premium",
	"is_roaming",
	"hour_of_day",
	"day_of_week",
	"is_weekend",
	"is_night_call",
	"daily_call_count",
	"daily_call_duration",
	"unique_destinations_count",
	"call_frequency_per_hour",
	"cell_tower_changes",
	"signal_strength",
	"duration_zscore",
	"cost_zscore",
}

// Features is the structured form of one scoring input. Behavioral fields
// (daily counts, unique destinations, frequency) default to zero when no
// subscriber profile store is attached.
type Features struct {
	DurationSeconds     float64
	IsInternational     float64 // 0 or 1
	IsPremium           float64 // 0 or 1
	IsRoaming           float64 // 0 or 1
	HourOfDay           float64 // 0-23
	DayOfWeek           float64 // 0-6, Sunday = 0
	IsWeekend           float64 // 0 or 1
	IsNightCall         float64 // 0 or 1 (22h-6h)
	DailyCallCount      float64
	DailyCallDuration   float64
	UniqueDestinations  float64
	CallFrequencyPerHr  float64
	CellTowerChanges    float64
	SignalStrength      float64 // normalized 0-1
	DurationZScore      float64
	CostZScore          float64
}

// Vector flattens the features in model order.
func (f Features) Vector() []float64 {
	return []float64{
		f.DurationSeconds,
		f.IsInternational,
		f.IsPremium,
		f.IsRoaming,
		f.HourOfDay,
		f.DayOfWeek,
		f.IsWeekend,
		f.IsNightCall,
		f.DailyCallCount,
		f.DailyCallDuration,
		f.UniqueDestinations,
		f.CallFrequencyPerHr,
		f.CellTowerChanges,
		f.SignalStrength,
		f.DurationZScore,
		f.CostZScore,
	}
}
