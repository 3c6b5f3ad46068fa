package fraud

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// reasonContribution is the minimum positive weight*feature product for a
// feature to appear in the reason tags.
const reasonContribution = 0.25

// LinearModel is a logistic regression over the fixed feature layout:
// sigma(w.x + b). Weights are loaded once at startup and never mutated.
type LinearModel struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// LoadLinearModel reads weights from a JSON file. Missing files, malformed
// JSON and dimension mismatches are all load errors; the caller falls back
// to the rule-based scorer.
func LoadLinearModel(path string) (*LinearModel, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model weights: %w", err)
	}

	var model LinearModel
	if err := json.Unmarshal(contents, &model); err != nil {
		return nil, fmt.Errorf("parse model weights: %w", err)
	}
	if len(model.Weights) != FeatureCount {
		return nil, fmt.Errorf("model dimension mismatch: got %d weights, want %d",
			len(model.Weights), FeatureCount)
	}
	return &model, nil
}

// Score computes sigma(w.x + b). Reasons are the names of features whose
// positive contribution to the linear score exceeds a threshold. A vector
// of the wrong length scores 0.5 (uncertain).
func (m *LinearModel) Score(x []float64) (float64, []string) {
	if len(x) != len(m.Weights) {
		return scoreUncertain, nil
	}

	linear := m.Intercept
	var reasons []string
	for i, xi := range x {
		contribution := m.Weights[i] * xi
		linear += contribution
		if contribution > reasonContribution {
			reasons = append(reasons, FeatureNames[i])
		}
	}

	return sigmoid(linear), reasons
}

// ScoreBatch scores each vector independently; output length always equals
// input length.
func (m *LinearModel) ScoreBatch(xs [][]float64) []float64 {
	return scoreBatch(m, xs)
}

// ModelID identifies the linear model version.
func (m *LinearModel) ModelID() string { return "fraud_linear_v1" }

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
