package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Customer is the account holder a transaction belongs to.
type Customer struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	DocumentNumber string `json:"documentNumber"`
	Segment        string `json:"segment"`
	Age            int    `json:"age"`
	RiskProfile    string `json:"riskProfile"`
}

// Merchant is the counterparty of a transaction. The blacklist and
// whitelist flags feed the rule-evaluation context.
type Merchant struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	RiskLevel     string `json:"riskLevel"`
	IsWhitelisted bool   `json:"isWhitelisted"`
	IsBlacklisted bool   `json:"isBlacklisted"`
}

// NewMerchant constructs a validated merchant.
func NewMerchant(name, category, riskLevel string, whitelisted, blacklisted bool) (*Merchant, error) {
	if whitelisted && blacklisted {
		return nil, fmt.Errorf("%w: merchant cannot be both whitelisted and blacklisted", ErrValidation)
	}
	return &Merchant{
		ID:            uuid.New().String(),
		Name:          name,
		Category:      category,
		RiskLevel:     riskLevel,
		IsWhitelisted: whitelisted,
		IsBlacklisted: blacklisted,
	}, nil
}

// Analyst is a fraud analyst eligible for case assignment.
type Analyst struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}
