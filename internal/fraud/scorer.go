package fraud

import (
	"go.uber.org/zap"
)

// scoreUncertain is substituted for unscorable inputs (wrong vector length)
// so that batch output length always equals input length.
const scoreUncertain = 0.5

// Scorer maps a feature vector of length FeatureCount to a fraud
// probability in [0,1] and the reason tags behind it. Implementations are
// read-only after construction; any number of goroutines may call them
// concurrently.
type Scorer interface {
	Score(x []float64) (float64, []string)
	ScoreBatch(xs [][]float64) []float64
	ModelID() string
}

// LoadScorer returns the linear model from path when the weights load
// cleanly, otherwise the rule-based fallback. Model selection happens once
// at startup.
func LoadScorer(path string, log *zap.Logger) Scorer {
	model, err := LoadLinearModel(path)
	if err != nil {
		log.Warn("fraud model weights unavailable, falling back to rule-based scorer",
			zap.String("path", path),
			zap.Error(err),
		)
		return NewRuleScorer()
	}
	log.Info("fraud model loaded", zap.String("path", path), zap.String("model", model.ModelID()))
	return model
}

// scoreBatch is the shared length-preserving batch implementation.
func scoreBatch(s Scorer, xs [][]float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if len(x) != FeatureCount {
			out[i] = scoreUncertain
			continue
		}
		out[i], _ = s.Score(x)
	}
	return out
}
