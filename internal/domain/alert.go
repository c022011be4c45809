package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action is the final decision taken on a scored transaction.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReview  Action = "REVIEW"
	ActionDecline Action = "DECLINE"
)

// Alert is the persisted record of a non-approve decision, carrying the
// evidence (scores and rule hits) for later review. Created exactly
// once per REVIEW or DECLINE decision.
type Alert struct {
	ID string `json:"id"`

	// TransactionOccurredAt travels with the transaction id so
	// time-partitioned transaction storage can be addressed directly.
	TransactionID         string    `json:"transactionId"`
	TransactionOccurredAt time.Time `json:"transactionOccurredAt"`

	Action     Action    `json:"action"`
	MLScore    float64   `json:"mlScore"`
	FinalScore float64   `json:"finalScore"`
	RuleHits   []RuleHit `json:"ruleHits"`

	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}

// NewAlert builds an alert for a scored transaction.
func NewAlert(tx *Transaction, action Action, mlScore, finalScore float64, hits []RuleHit) *Alert {
	return &Alert{
		ID:                    uuid.New().String(),
		TransactionID:         tx.ID,
		TransactionOccurredAt: tx.OccurredAt,
		Action:                action,
		MLScore:               mlScore,
		FinalScore:            finalScore,
		RuleHits:              hits,
		CreatedAt:             time.Now().UTC(),
	}
}
