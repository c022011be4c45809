// Package domain defines the core entities and collaborator contracts
// for the Harrier decisioning pipeline.
package domain

import (
	"context"
	"time"
)

// Repository defines the persistence boundary of the pipeline. The
// scoring core consumes narrow slices of it (see internal/scoring);
// implementations live in internal/repository.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactionsByCustomer(ctx context.Context, customerID string, since time.Time) ([]*Transaction, error)

	// Behavior profile operations. SaveBehaviorProfile has upsert
	// semantics and must be safe under concurrent writers.
	// ComputeRecentAggregates recomputes the rolling aggregates from
	// the transaction history, never from a prior profile.
	GetBehaviorProfile(ctx context.Context, customerID string) (*BehaviorProfile, error)
	SaveBehaviorProfile(ctx context.Context, profile *BehaviorProfile) (*BehaviorProfile, error)
	ComputeRecentAggregates(ctx context.Context, customerID string) (*BehaviorStats, error)

	// Rule operations. ListEnabledRules returns rules in a stable
	// order; the engine evaluates them exactly in that order.
	SaveRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, ruleID string) (*Rule, error)
	ListRules(ctx context.Context) ([]*Rule, error)
	ListEnabledRules(ctx context.Context) ([]*Rule, error)

	// Alert operations
	CreateAlert(ctx context.Context, alert *Alert) (*Alert, error)
	GetAlert(ctx context.Context, alertID string) (*Alert, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]*Alert, error)

	// Case operations. CreateCase enforces at most one case per alert
	// at the persistence boundary.
	CreateCase(ctx context.Context, c *Case) (*Case, error)
	GetCase(ctx context.Context, caseID string) (*Case, error)
	GetCaseByAlert(ctx context.Context, alertID string) (*Case, error)
	UpdateCase(ctx context.Context, c *Case) (*Case, error)
	ListCases(ctx context.Context, limit, offset int) ([]*Case, error)

	// Analyst directory
	SaveAnalyst(ctx context.Context, analyst *Analyst) error
	ListAnalysts(ctx context.Context) ([]*Analyst, error)

	// Customer / merchant lookups (plumbing around the core)
	SaveCustomer(ctx context.Context, customer *Customer) error
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	SaveMerchant(ctx context.Context, merchant *Merchant) error
	GetMerchant(ctx context.Context, merchantID string) (*Merchant, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ModelScorer maps a feature vector to a fraud probability in [0, 1].
// The model internals are opaque to the pipeline.
type ModelScorer interface {
	Score(ctx context.Context, features map[string]any) (float64, error)
}
