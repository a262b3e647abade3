// Package pricing converts pari-mutuel pool sizes into implied odds and
// payout projections. Everything here is pure: no state, no clocks, no
// mutation of the market passed in.
package pricing

import "github.com/xuanbach0212/predictum/internal/domain"

// Odds returns the implied probability of each outcome from the current
// pool sizes. An empty market carries no information and prices both sides
// at 0.5. Both odds share the same denominator, so their sum is exactly 1.
func Odds(m domain.Market) (yes, no float64) {
	total := m.YesPool + m.NoPool
	if total == 0 {
		return 0.5, 0.5
	}
	return m.YesPool / total, m.NoPool / total
}

// PotentialPayout projects the payout a bet of amount on outcome would
// receive if that outcome wins, assuming no further bets land. The
// projection folds the new bet into both the total pool and the chosen
// side's pool, then splits the total pro rata.
//
// Callers must reject non-positive amounts before calling; a zero amount
// yields a meaningless zero share.
func PotentialPayout(m domain.Market, outcome domain.Outcome, amount float64) float64 {
	total := m.YesPool + m.NoPool + amount

	sidePool := m.NoPool
	if outcome == domain.OutcomeYes {
		sidePool = m.YesPool
	}
	sidePool += amount

	return total * (amount / sidePool)
}
