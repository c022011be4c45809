package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CaseDecision is the investigation outcome of a case.
type CaseDecision string

const (
	CasePending        CaseDecision = "PENDING"
	CaseConfirmedFraud CaseDecision = "CONFIRMED_FRAUD"
	CaseFalsePositive  CaseDecision = "FALSE_POSITIVE"
)

// Case is an investigation opened against an alert and assigned to an
// analyst. At most one case exists per alert; the decision moves from
// PENDING to exactly one terminal state.
type Case struct {
	ID        string       `json:"id"`
	AlertID   string       `json:"alertId"`
	AnalystID string       `json:"analystId"`
	Decision  CaseDecision `json:"decision"`

	// Notes is an append-only investigation log.
	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewCase opens a pending case linking an alert to an analyst.
func NewCase(alertID, analystID string) *Case {
	now := time.Now().UTC()
	return &Case{
		ID:        uuid.New().String(),
		AlertID:   alertID,
		AnalystID: analystID,
		Decision:  CasePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddNote appends a timestamped note to the case log.
func (c *Case) AddNote(note, analystName string) {
	now := time.Now().UTC()
	c.Notes += fmt.Sprintf("[%s - %s]: %s\n", now.Format("2006-01-02 15:04:05 UTC"), analystName, note)
	c.UpdatedAt = now
}

// Resolve closes the case with a terminal decision. Resolving a case
// that already left PENDING is a policy error, not a no-op.
func (c *Case) Resolve(decision CaseDecision) error {
	if c.Decision != CasePending {
		return fmt.Errorf("%w: current decision is %s", ErrCaseResolved, c.Decision)
	}
	if decision != CaseConfirmedFraud && decision != CaseFalsePositive {
		return fmt.Errorf("%w: resolution must be CONFIRMED_FRAUD or FALSE_POSITIVE", ErrValidation)
	}
	c.Decision = decision
	c.UpdatedAt = time.Now().UTC()
	return nil
}
