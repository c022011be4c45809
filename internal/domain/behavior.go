package domain

import "time"

// BehaviorProfile holds the rolling aggregates of a customer's
// transactional behavior. One row per customer, created lazily on the
// first scored transaction and refreshed after every scoring.
type BehaviorProfile struct {
	CustomerID string `json:"customerId"`

	TxCount10m   int     `json:"txCount10m"`
	TxCount30m   int     `json:"txCount30m"`
	TxCount24h   int     `json:"txCount24h"`
	AvgAmount24h float64 `json:"avgAmount24h"`

	UsualCountry  string `json:"usualCountry,omitempty"`
	UsualIP       string `json:"usualIp,omitempty"`
	UsualHourBand string `json:"usualHourBand,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// NewBehaviorProfile returns an empty default profile for a customer.
// All counts are zero and no usual country is known.
func NewBehaviorProfile(customerID string) *BehaviorProfile {
	return &BehaviorProfile{
		CustomerID: customerID,
		UpdatedAt:  time.Now().UTC(),
	}
}

// BehaviorStats is the authoritative aggregate recomputation over a
// customer's transaction history. Produced by the store, never derived
// incrementally from an in-memory profile.
type BehaviorStats struct {
	TxCount10m   int     `json:"txCount10m"`
	TxCount30m   int     `json:"txCount30m"`
	TxCount24h   int     `json:"txCount24h"`
	AvgAmount24h float64 `json:"avgAmount24h"`
	UsualCountry string  `json:"usualCountry,omitempty"`
	UsualIP      string  `json:"usualIp,omitempty"`
}

// Refresh replaces the profile's aggregates with freshly recomputed
// stats. When history yields no usual country the existing value is
// kept, falling back to the scored transaction's country for brand-new
// customers.
func (p *BehaviorProfile) Refresh(stats *BehaviorStats, txCountry string) {
	p.TxCount10m = stats.TxCount10m
	p.TxCount30m = stats.TxCount30m
	p.TxCount24h = stats.TxCount24h
	p.AvgAmount24h = stats.AvgAmount24h

	if stats.UsualCountry != "" {
		p.UsualCountry = stats.UsualCountry
	} else if p.UsualCountry == "" {
		p.UsualCountry = txCountry
	}
	if stats.UsualIP != "" {
		p.UsualIP = stats.UsualIP
	}

	p.UpdatedAt = time.Now().UTC()
}
