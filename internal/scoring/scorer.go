package scoring

import (
	"context"
	"math"
	"math/rand/v2"
)

// HeuristicScorer is a stand-in for the real model. It reproduces the
// shape of the trained scorer's output from a handful of features so
// the pipeline can run end to end without model artifacts.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the stub scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score maps the feature vector to a risk probability in [0, 1].
func (s *HeuristicScorer) Score(_ context.Context, features map[string]any) (float64, error) {
	score := 0.1 // base risk for any transaction

	if amount, ok := features["amount"].(float64); ok && amount > 1500 {
		score += 0.3
	}
	if count, ok := features["tx_count_10m"].(int); ok && count > 3 {
		score += 0.4
	}
	if newCountry, ok := features["is_new_country"].(bool); ok && newCountry {
		score += 0.25
	}

	score = math.Min(score+rand.Float64()*0.1, 1.0)
	return math.Round(score*10000) / 10000, nil
}
