// Package decision combines a model score and rule hits into the final
// action for a transaction.
package decision

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// Policy constants. Boosts are additive and order-independent; the sum
// is clamped once, after all hits contributed.
const (
	DeclineThreshold = 0.90
	ReviewThreshold  = 0.75

	HighBoost   = 0.25
	MediumBoost = 0.10
)

// Service is the pure decision policy. It holds no state and performs
// no I/O.
type Service struct{}

// NewService returns the decision policy.
func NewService() *Service {
	return &Service{}
}

// Decide maps a model score and rule hits to (action, final score).
// Evaluated in order, first match wins:
//  1. any critical hit declines at score 1.0, bypassing all scoring;
//  2. the model score is boosted per high/medium hit and clamped to 1.0;
//  3. the thresholds pick the action.
func (s *Service) Decide(mlScore float64, hits []domain.RuleHit) (domain.Action, float64) {
	for _, hit := range hits {
		if hit.Severity == domain.SeverityCritical {
			return domain.ActionDecline, 1.0
		}
	}

	boost := 0.0
	for _, hit := range hits {
		switch hit.Severity {
		case domain.SeverityHigh:
			boost += HighBoost
		case domain.SeverityMedium:
			boost += MediumBoost
		}
	}

	finalScore := mlScore + boost
	if finalScore > 1.0 {
		finalScore = 1.0
	}

	switch {
	case finalScore >= DeclineThreshold:
		return domain.ActionDecline, finalScore
	case finalScore >= ReviewThreshold:
		return domain.ActionReview, finalScore
	default:
		return domain.ActionApprove, finalScore
	}
}
