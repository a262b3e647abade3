package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
//
// Valid transitions: Active -> Locked -> Resolved, with Active|Locked ->
// Cancelled also reachable. Resolved and Cancelled are terminal.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "Active"
	MarketStatusLocked    MarketStatus = "Locked"
	MarketStatusResolved  MarketStatus = "Resolved"
	MarketStatusCancelled MarketStatus = "Cancelled"
)

// Valid reports whether s is a known lifecycle state.
func (s MarketStatus) Valid() bool {
	switch s {
	case MarketStatusActive, MarketStatusLocked, MarketStatusResolved, MarketStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusResolved || s == MarketStatusCancelled
}

// Outcome is one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "Yes"
	OutcomeNo  Outcome = "No"
)

// Valid reports whether o is one of the two defined outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Category classifies a market for filtering on the read side.
type Category string

const (
	CategorySports Category = "Sports"
	CategoryCrypto Category = "Crypto"
	CategoryBinary Category = "Binary"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategorySports, CategoryCrypto, CategoryBinary:
		return true
	}
	return false
}

// Market is a binary-outcome prediction market with pari-mutuel pools.
// Pools and share counters are non-negative at every observable point;
// WinningOutcome is set iff Status is Resolved.
type Market struct {
	ID             int64        `json:"id"`
	Question       string       `json:"question"`
	Category       Category     `json:"category"`
	Status         MarketStatus `json:"status"`
	EndTime        time.Time    `json:"endTime"`
	YesPool        float64      `json:"yesPool"`
	NoPool         float64      `json:"noPool"`
	TotalYesShares float64      `json:"totalYesShares"`
	TotalNoShares  float64      `json:"totalNoShares"`
	WinningOutcome *Outcome     `json:"winningOutcome,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// TotalPool returns the combined wager amount across both sides.
func (m Market) TotalPool() float64 {
	return m.YesPool + m.NoPool
}
