package domain

// Position records a user's accumulated stake in a single market. It is
// created on the user's first bet, mutated by subsequent bets, and never
// deleted. Claimed moves false -> true exactly once and is never reset.
type Position struct {
	MarketID  int64   `json:"marketId"`
	User      string  `json:"user"`
	YesAmount float64 `json:"yesAmount"`
	NoAmount  float64 `json:"noAmount"`
	YesShares float64 `json:"yesShares"`
	NoShares  float64 `json:"noShares"`
	Claimed   bool    `json:"claimed"`
}

// TotalAmount returns the user's total contribution across both sides,
// which is also the refund owed if the market is cancelled.
func (p Position) TotalAmount() float64 {
	return p.YesAmount + p.NoAmount
}
