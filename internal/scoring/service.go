// Package scoring orchestrates the fraud decisioning pipeline for a
// single transaction: behavior profile, rule evaluation, model score,
// decision, alert/case side effects, profile refresh.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/opensource-finance/harrier/internal/behavior"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Narrow store slices consumed by the orchestrator. All are satisfied
// by domain.Repository.
type (
	// RuleStore lists the enabled rules in their stable order.
	RuleStore interface {
		ListEnabledRules(ctx context.Context) ([]*domain.Rule, error)
	}

	// AlertStore persists alerts.
	AlertStore interface {
		CreateAlert(ctx context.Context, alert *domain.Alert) (*domain.Alert, error)
	}

	// CaseStore persists cases, enforcing one case per alert.
	CaseStore interface {
		CreateCase(ctx context.Context, c *domain.Case) (*domain.Case, error)
	}

	// AnalystDirectory lists analysts eligible for assignment.
	AnalystDirectory interface {
		ListAnalysts(ctx context.Context) ([]*domain.Analyst, error)
	}

	// MerchantStore resolves the merchant flags for rule context.
	MerchantStore interface {
		GetMerchant(ctx context.Context, merchantID string) (*domain.Merchant, error)
	}
)

// Result is the decision payload returned to the caller.
type Result struct {
	Action     domain.Action    `json:"action"`
	MLScore    float64          `json:"ml_score"`
	FinalScore float64          `json:"final_score"`
	RuleHits   []domain.RuleHit `json:"rule_hits"`
	AlertID    string           `json:"alert_id,omitempty"`
	CaseID     string           `json:"case_id,omitempty"`
}

// Service is the scoring orchestrator, the only stateful coordinator
// in the pipeline.
type Service struct {
	profiles  *behavior.Service
	ruleStore RuleStore
	alerts    AlertStore
	cases     CaseStore
	analysts  AnalystDirectory
	merchants MerchantStore
	scorer    domain.ModelScorer
	decider   *decision.Service
	evaluator rules.Evaluator
	bus       domain.EventBus // optional
}

// NewService wires the orchestrator. bus may be nil; events are then
// skipped.
func NewService(
	profiles *behavior.Service,
	ruleStore RuleStore,
	alerts AlertStore,
	cases CaseStore,
	analysts AnalystDirectory,
	merchants MerchantStore,
	scorer domain.ModelScorer,
	decider *decision.Service,
	evaluator rules.Evaluator,
	bus domain.EventBus,
) *Service {
	return &Service{
		profiles:  profiles,
		ruleStore: ruleStore,
		alerts:    alerts,
		cases:     cases,
		analysts:  analysts,
		merchants: merchants,
		scorer:    scorer,
		decider:   decider,
		evaluator: evaluator,
		bus:       bus,
	}
}

// Score runs the pipeline for one validated transaction.
//
// Alert/case creation and the profile refresh are deliberately not one
// transaction: a failure between them leaves the alert persisted with a
// stale profile. The refresh recomputes from history, so the next
// scoring for the customer converges regardless.
func (s *Service) Score(ctx context.Context, tx *domain.Transaction) (*Result, error) {
	// 1. Behavior profile; absence means a fresh default, persisted
	// only by the refresh at the end.
	profile, err := s.profiles.Profile(ctx, tx.CustomerID)
	if errors.Is(err, domain.ErrNotFound) {
		profile = domain.NewBehaviorProfile(tx.CustomerID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load behavior profile: %w", err)
	}

	// 2. Model feature vector.
	features := modelFeatures(tx, profile)

	// 3. Rule evaluation over the enabled set.
	ruleSet, err := s.ruleStore.ListEnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	merchant := s.lookupMerchant(ctx, tx.MerchantID)
	hits := rules.NewEngine(ruleSet, s.evaluator).Evaluate(tx, profile, merchant)

	// 4. Model score.
	mlScore, err := s.scorer.Score(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("model scoring failed: %w", err)
	}

	// 5. Final decision.
	action, finalScore := s.decider.Decide(mlScore, hits)

	result := &Result{
		Action:     action,
		MLScore:    mlScore,
		FinalScore: finalScore,
		RuleHits:   hits,
	}

	// 6. Alert and case side effects for non-approve decisions.
	if action == domain.ActionReview || action == domain.ActionDecline {
		if err := s.raiseAlert(ctx, tx, result); err != nil {
			return nil, err
		}
	}

	// 7. Unconditional profile refresh from history, whatever the
	// action was.
	if _, err := s.profiles.Refresh(ctx, tx, profile); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, tx, result)

	slog.Info("transaction scored",
		"tx_id", tx.ID,
		"customer_id", tx.CustomerID,
		"action", result.Action,
		"ml_score", result.MLScore,
		"final_score", result.FinalScore,
		"rule_hits", len(result.RuleHits),
	)

	return result, nil
}

// modelFeatures builds the feature vector for the model scorer.
func modelFeatures(tx *domain.Transaction, profile *domain.BehaviorProfile) map[string]any {
	return map[string]any{
		"amount":         tx.Amount,
		"tx_count_10m":   profile.TxCount10m,
		"tx_count_30m":   profile.TxCount30m,
		"tx_count_24h":   profile.TxCount24h,
		"avg_amount_24h": profile.AvgAmount24h,
		"is_new_country": profile.UsualCountry != "" && tx.Country != profile.UsualCountry,
	}
}

// lookupMerchant resolves merchant flags for the rule context. Merchant
// data is optional context: absence or a lookup failure leaves the
// flags false rather than failing the scoring.
func (s *Service) lookupMerchant(ctx context.Context, merchantID string) *domain.Merchant {
	if merchantID == "" || s.merchants == nil {
		return nil
	}
	merchant, err := s.merchants.GetMerchant(ctx, merchantID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("merchant lookup failed", "merchant_id", merchantID, "error", err)
		}
		return nil
	}
	return merchant
}

// raiseAlert persists the alert and opens a case for a random analyst.
// With no analysts available the alert stays unassigned; that is a
// logged degraded mode, not an error.
func (s *Service) raiseAlert(ctx context.Context, tx *domain.Transaction, result *Result) error {
	alert := domain.NewAlert(tx, result.Action, result.MLScore, result.FinalScore, result.RuleHits)
	created, err := s.alerts.CreateAlert(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	result.AlertID = created.ID

	analysts, err := s.analysts.ListAnalysts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list analysts: %w", err)
	}
	if len(analysts) == 0 {
		slog.Warn("alert created but no analysts available",
			"alert_id", created.ID,
			"tx_id", tx.ID,
		)
		return nil
	}

	analyst := analysts[rand.IntN(len(analysts))]
	c, err := s.cases.CreateCase(ctx, domain.NewCase(created.ID, analyst.ID))
	if err != nil {
		return fmt.Errorf("failed to open case for alert %s: %w", created.ID, err)
	}
	result.CaseID = c.ID

	slog.Info("case opened",
		"case_id", c.ID,
		"alert_id", created.ID,
		"analyst_id", analyst.ID,
	)
	return nil
}

// DecisionEvent is the payload published on the decision and alert
// topics.
type DecisionEvent struct {
	TransactionID string           `json:"transactionId"`
	CustomerID    string           `json:"customerId"`
	Action        domain.Action    `json:"action"`
	MLScore       float64          `json:"mlScore"`
	FinalScore    float64          `json:"finalScore"`
	RuleHits      []domain.RuleHit `json:"ruleHits,omitempty"`
	AlertID       string           `json:"alertId,omitempty"`
	CaseID        string           `json:"caseId,omitempty"`
}

// publishEvents emits decision (always) and alert (non-approve) events.
// Publishing is best effort; failures are logged, never surfaced.
func (s *Service) publishEvents(ctx context.Context, tx *domain.Transaction, result *Result) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(DecisionEvent{
		TransactionID: tx.ID,
		CustomerID:    tx.CustomerID,
		Action:        result.Action,
		MLScore:       result.MLScore,
		FinalScore:    result.FinalScore,
		RuleHits:      result.RuleHits,
		AlertID:       result.AlertID,
		CaseID:        result.CaseID,
	})
	if err != nil {
		slog.Error("failed to marshal decision event", "tx_id", tx.ID, "error", err)
		return
	}

	if err := s.bus.Publish(ctx, domain.TopicDecision, payload); err != nil {
		slog.Error("failed to publish decision", "tx_id", tx.ID, "error", err)
	}
	if result.AlertID != "" {
		if err := s.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert", "tx_id", tx.ID, "error", err)
		}
	}
}
