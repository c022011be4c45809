package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity is the criticality tier of a rule. It controls how a hit
// contributes to the final decision.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a severity string.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(s)); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("%w: unknown severity %q", ErrValidation, s)
	}
}

// Rule is a declarative fraud detection rule. Expression is a
// boolean-valued CEL expression over the scoring context variables.
type Rule struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	Severity   Severity `json:"severity"`
	Enabled    bool     `json:"enabled"`

	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// NewRule constructs a validated, enabled rule.
func NewRule(name, expression string, severity Severity, createdBy string) (*Rule, error) {
	now := time.Now().UTC()
	r := &Rule{
		ID:         uuid.New().String(),
		Name:       name,
		Expression: expression,
		Severity:   severity,
		Enabled:    true,
		CreatedAt:  now,
		CreatedBy:  createdBy,
		UpdatedAt:  now,
		UpdatedBy:  createdBy,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rule invariants.
func (r *Rule) Validate() error {
	if len(strings.TrimSpace(r.Name)) < 5 {
		return fmt.Errorf("%w: rule name must be at least 5 characters", ErrValidation)
	}
	if len(strings.TrimSpace(r.Expression)) < 10 {
		return fmt.Errorf("%w: rule expression must be at least 10 characters", ErrValidation)
	}
	if _, err := ParseSeverity(string(r.Severity)); err != nil {
		return err
	}
	return nil
}

// RuleHit records a rule whose expression evaluated to true for a
// transaction. Hits are ephemeral; they are embedded into an alert's
// payload rather than persisted on their own.
type RuleHit struct {
	RuleID     string   `json:"rule_id"`
	RuleName   string   `json:"rule_name"`
	Expression string   `json:"expression"`
	Severity   Severity `json:"severity"`
}
