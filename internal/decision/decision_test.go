package decision

import (
	"math"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func hit(severity domain.Severity) domain.RuleHit {
	return domain.RuleHit{RuleID: "r-" + string(severity), RuleName: "Rule " + string(severity), Severity: severity}
}

func TestDecideCriticalOverride(t *testing.T) {
	svc := NewService()

	cases := []struct {
		name    string
		mlScore float64
		hits    []domain.RuleHit
	}{
		{"critical alone with tiny score", 0.01, []domain.RuleHit{hit(domain.SeverityCritical)}},
		{"critical among others", 0.50, []domain.RuleHit{hit(domain.SeverityLow), hit(domain.SeverityCritical), hit(domain.SeverityHigh)}},
		{"critical last", 0.99, []domain.RuleHit{hit(domain.SeverityHigh), hit(domain.SeverityCritical)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action, score := svc.Decide(tc.mlScore, tc.hits)
			if action != domain.ActionDecline || score != 1.0 {
				t.Errorf("Decide = (%s, %v), want (DECLINE, 1.0)", action, score)
			}
		})
	}
}

func TestDecideBoostsAndThresholds(t *testing.T) {
	svc := NewService()

	cases := []struct {
		name       string
		mlScore    float64
		hits       []domain.RuleHit
		wantAction domain.Action
		wantScore  float64
	}{
		{"no hits approve", 0.50, nil, domain.ActionApprove, 0.50},
		{"single high boosts to review", 0.50, []domain.RuleHit{hit(domain.SeverityHigh)}, domain.ActionReview, 0.75},
		{"medium boost below threshold", 0.60, []domain.RuleHit{hit(domain.SeverityMedium)}, domain.ActionApprove, 0.70},
		{"low hits contribute nothing", 0.60, []domain.RuleHit{hit(domain.SeverityLow), hit(domain.SeverityLow)}, domain.ActionApprove, 0.60},
		{"boundary decline at 0.90", 0.65, []domain.RuleHit{hit(domain.SeverityHigh)}, domain.ActionDecline, 0.90},
		{"boundary review at 0.75", 0.75, nil, domain.ActionReview, 0.75},
		{"just below review", 0.749999, nil, domain.ActionApprove, 0.749999},
		{"boosts clamp at 1.0", 0.80, []domain.RuleHit{hit(domain.SeverityHigh), hit(domain.SeverityHigh)}, domain.ActionDecline, 1.0},
		{"mixed severities sum", 0.30, []domain.RuleHit{hit(domain.SeverityHigh), hit(domain.SeverityMedium), hit(domain.SeverityMedium)}, domain.ActionApprove, 0.50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action, score := svc.Decide(tc.mlScore, tc.hits)
			if action != tc.wantAction {
				t.Errorf("action = %s, want %s", action, tc.wantAction)
			}
			if math.Abs(score-tc.wantScore) > 1e-9 {
				t.Errorf("score = %v, want %v", score, tc.wantScore)
			}
		})
	}
}

func TestDecideBoostOrderIndependent(t *testing.T) {
	svc := NewService()

	forward := []domain.RuleHit{hit(domain.SeverityHigh), hit(domain.SeverityMedium), hit(domain.SeverityLow)}
	reversed := []domain.RuleHit{hit(domain.SeverityLow), hit(domain.SeverityMedium), hit(domain.SeverityHigh)}

	a1, s1 := svc.Decide(0.40, forward)
	a2, s2 := svc.Decide(0.40, reversed)
	if a1 != a2 || s1 != s2 {
		t.Errorf("decision depends on hit order: (%s, %v) vs (%s, %v)", a1, s1, a2, s2)
	}
}
