package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel is the channel a transaction came in through.
type Channel string

const (
	ChannelPOS  Channel = "POS"
	ChannelEcom Channel = "ECOM"
)

// Transaction represents a financial transaction event.
// Immutable once created; the scoring pipeline never mutates it.
type Transaction struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customerId"`
	MerchantID string  `json:"merchantId"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Channel    Channel `json:"channel"`

	OccurredAt time.Time `json:"occurredAt"`
	CreatedAt  time.Time `json:"createdAt"`

	// Optional context captured at ingestion
	DeviceID  string `json:"deviceId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	Country   string `json:"country,omitempty"`

	// Ground-truth label, when known (backtesting datasets)
	LabelFraud *bool `json:"labelFraud,omitempty"`
}

// NewTransaction constructs a validated transaction with a fresh ID.
func NewTransaction(customerID, merchantID string, amount float64, currency string, channel Channel) (*Transaction, error) {
	now := time.Now().UTC()
	tx := &Transaction{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		MerchantID: merchantID,
		Amount:     amount,
		Currency:   currency,
		Channel:    channel,
		OccurredAt: now,
		CreatedAt:  now,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Validate checks the transaction invariants.
func (t *Transaction) Validate() error {
	if t.CustomerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("%w: transaction amount must be positive", ErrValidation)
	}
	if len(t.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	}
	switch t.Channel {
	case ChannelPOS, ChannelEcom:
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrValidation, t.Channel)
	}
	return nil
}
