package rules

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine holds the enabled rule set for one evaluation pass. Disabled
// rules are excluded at construction, not per call; evaluation order is
// the retrieval order of the rules and hit order matches it. Identical
// rules present twice produce two hits.
type Engine struct {
	rules     []*domain.Rule
	evaluator Evaluator
}

// NewEngine creates an engine over the given rules, keeping only the
// enabled ones in their given order.
func NewEngine(ruleSet []*domain.Rule, evaluator Evaluator) *Engine {
	enabled := make([]*domain.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return &Engine{
		rules:     enabled,
		evaluator: evaluator,
	}
}

// RulesCount returns the number of enabled rules loaded.
func (e *Engine) RulesCount() int {
	return len(e.rules)
}

// Evaluate builds the context once and collects a hit for every rule
// whose expression evaluates to true.
func (e *Engine) Evaluate(tx *domain.Transaction, profile *domain.BehaviorProfile, merchant *domain.Merchant) []domain.RuleHit {
	context := BuildContext(tx, profile, merchant)

	var hits []domain.RuleHit
	for _, rule := range e.rules {
		if e.evaluator.Evaluate(rule, context) {
			hits = append(hits, domain.RuleHit{
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				Expression: rule.Expression,
				Severity:   rule.Severity,
			})
		}
	}
	return hits
}

// BuildContext assembles the flat variable map a rule expression is
// evaluated against. The variable set is fixed; merchant flags default
// to false when merchant data is absent.
func BuildContext(tx *domain.Transaction, profile *domain.BehaviorProfile, merchant *domain.Merchant) map[string]any {
	// Both countries must be known for a foreign-transaction signal.
	isForeign := tx.Country != "" && profile.UsualCountry != "" && tx.Country != profile.UsualCountry

	// Ratio defined as 1.0 when there is no 24h average yet.
	amountRatio := 1.0
	if profile.AvgAmount24h != 0 {
		amountRatio = tx.Amount / profile.AvgAmount24h
	}

	blacklisted := false
	whitelisted := false
	if merchant != nil {
		blacklisted = merchant.IsBlacklisted
		whitelisted = merchant.IsWhitelisted
	}

	return map[string]any{
		"amount":                  tx.Amount,
		"currency":                tx.Currency,
		"country":                 tx.Country,
		"ip_address":              tx.IPAddress,
		"device_id":               tx.DeviceID,
		"channel":                 string(tx.Channel),
		"tx_count_10m":            int64(profile.TxCount10m),
		"tx_count_30m":            int64(profile.TxCount30m),
		"tx_count_24h":            int64(profile.TxCount24h),
		"avg_amount_24h":          profile.AvgAmount24h,
		"usual_country":           profile.UsualCountry,
		"usual_ip":                profile.UsualIP,
		"is_foreign_transaction":  isForeign,
		"amount_ratio_vs_avg":     amountRatio,
		"is_blacklisted_merchant": blacklisted,
		"is_whitelisted_merchant": whitelisted,
	}
}
