package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorWith(set map[int]float64) []float64 {
	x := make([]float64, FeatureCount)
	x[IdxSignalStrength] = nominalSignal
	for i, v := range set {
		x[i] = v
	}
	return x
}

func TestRuleScorer_Table(t *testing.T) {
	scorer := NewRuleScorer()

	tests := []struct {
		name        string
		features    map[int]float64
		wantScore   float64
		wantReasons []string
	}{
		{
			name:      "clean record",
			features:  nil,
			wantScore: 0,
		},
		{
			name: "international roaming",
			features: map[int]float64{
				IdxIsInternational: 1,
				IdxIsRoaming:       1,
			},
			wantScore:   0.30,
			wantReasons: []string{ReasonIntlRoaming},
		},
		{
			name: "night call frequency",
			features: map[int]float64{
				IdxIsNightCall:          1,
				IdxCallFrequencyPerHour: 3,
			},
			wantScore:   0.25,
			wantReasons: []string{ReasonNightFrequency},
		},
		{
			name: "duration anomaly both signs",
			features: map[int]float64{
				IdxDurationZScore: -2.5,
			},
			wantScore:   0.20,
			wantReasons: []string{ReasonDurationAnomaly},
		},
		{
			name: "cost anomaly",
			features: map[int]float64{
				IdxCostZScore: 3.0,
			},
			wantScore:   0.25,
			wantReasons: []string{ReasonCostAnomaly},
		},
		{
			name: "mobility",
			features: map[int]float64{
				IdxCellTowerChanges: 6,
			},
			wantScore:   0.15,
			wantReasons: []string{ReasonMobility},
		},
		{
			name: "weak signal international",
			features: map[int]float64{
				IdxIsInternational: 1,
				IdxSignalStrength:  0.1,
			},
			wantScore:   0.10,
			wantReasons: []string{ReasonSignalIntl},
		},
		{
			name: "everything fires, clamped to 1",
			features: map[int]float64{
				IdxIsInternational:      1,
				IdxIsRoaming:            1,
				IdxIsNightCall:          1,
				IdxCallFrequencyPerHour: 5,
				IdxDurationZScore:       4,
				IdxCostZScore:           4,
				IdxCellTowerChanges:     10,
				IdxSignalStrength:       0.1,
			},
			wantScore: 1.0,
			wantReasons: []string{
				ReasonIntlRoaming, ReasonNightFrequency, ReasonDurationAnomaly,
				ReasonCostAnomaly, ReasonMobility, ReasonSignalIntl,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasons := scorer.Score(vectorWith(tt.features))
			assert.InDelta(t, tt.wantScore, score, 1e-9)
			assert.Equal(t, tt.wantReasons, reasons)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestRuleScorer_WrongDimensionIsUncertain(t *testing.T) {
	score, reasons := NewRuleScorer().Score([]float64{1, 2, 3})
	assert.Equal(t, 0.5, score)
	assert.Nil(t, reasons)
}

func TestScoreBatch_LengthPreserved(t *testing.T) {
	scorer := NewRuleScorer()

	xs := [][]float64{
		vectorWith(nil),
		{1, 2},  // wrong dimension: substituted, never dropped
		vectorWith(map[int]float64{IdxIsInternational: 1, IdxIsRoaming: 1}),
		nil,
	}

	out := scorer.ScoreBatch(xs)
	require.Len(t, out, len(xs))
	assert.Equal(t, 0.5, out[1])
	assert.Equal(t, 0.5, out[3])
	assert.InDelta(t, 0.30, out[2], 1e-9)
}

func TestScoreBatch_Empty(t *testing.T) {
	assert.Empty(t, NewRuleScorer().ScoreBatch(nil))
}
