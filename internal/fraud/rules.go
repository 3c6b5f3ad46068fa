package fraud

// Reason tags emitted by the rule-based scorer.
const (
	ReasonIntlRoaming     = "intl_roaming"
	ReasonNightFrequency  = "night_frequency"
	ReasonDurationAnomaly = "duration_anomaly"
	ReasonCostAnomaly     = "cost_anomaly"
	ReasonMobility        = "mobility"
	ReasonSignalIntl      = "signal_intl"
)

// RuleScorer is the deterministic additive fallback used when no trained
// weights are available. Each matching rule adds a fixed increment; the sum
// is clamped to [0,1].
type RuleScorer struct{}

// NewRuleScorer returns the rule-based scorer.
func NewRuleScorer() *RuleScorer { return &RuleScorer{} }

// Score applies the rule table to x. A vector of the wrong length scores
// 0.5 (uncertain) with no reasons.
func (r *RuleScorer) Score(x []float64) (float64, []string) {
	if len(x) != FeatureCount {
		return scoreUncertain, nil
	}

	var score float64
	var reasons []string

	if x[IdxIsInternational] > 0.5 && x[IdxIsRoaming] > 0.5 {
		score += 0.30
		reasons = append(reasons, ReasonIntlRoaming)
	}
	if x[IdxIsNightCall] > 0.5 && x[IdxCallFrequencyPerHour] > 2.0 {
		score += 0.25
		reasons = append(reasons, ReasonNightFrequency)
	}
	if abs(x[IdxDurationZScore]) > 2.0 {
		score += 0.20
		reasons = append(reasons, ReasonDurationAnomaly)
	}
	if abs(x[IdxCostZScore]) > 2.5 {
		score += 0.25
		reasons = append(reasons, ReasonCostAnomaly)
	}
	if x[IdxCellTowerChanges] > 5.0 {
		score += 0.15
		reasons = append(reasons, ReasonMobility)
	}
	if x[IdxSignalStrength] < 0.3 && x[IdxIsInternational] > 0.5 {
		score += 0.10
		reasons = append(reasons, ReasonSignalIntl)
	}

	return clamp01(score), reasons
}

// ScoreBatch scores each vector independently; output length always equals
// input length.
func (r *RuleScorer) ScoreBatch(xs [][]float64) []float64 {
	return scoreBatch(r, xs)
}

// ModelID identifies the rule table version.
func (r *RuleScorer) ModelID() string { return "fraud_rules_v1" }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
