package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xuanbach0212/predictum/internal/domain"
)

func market(yesPool, noPool float64) domain.Market {
	return domain.Market{
		ID:       1,
		Question: "Will BTC close above 100k this year?",
		Category: domain.CategoryCrypto,
		Status:   domain.MarketStatusActive,
		YesPool:  yesPool,
		NoPool:   noPool,
	}
}

func TestOdds_EmptyMarket(t *testing.T) {
	yes, no := Odds(market(0, 0))
	assert.Equal(t, 0.5, yes)
	assert.Equal(t, 0.5, no)
}

func TestOdds_ProportionalSplit(t *testing.T) {
	yes, no := Odds(market(700, 300))
	assert.Equal(t, 0.7, yes)
	assert.Equal(t, 0.3, no)
}

func TestOdds_OneSided(t *testing.T) {
	yes, no := Odds(market(100, 0))
	assert.Equal(t, 1.0, yes)
	assert.Equal(t, 0.0, no)
}

func TestOdds_SumToOne(t *testing.T) {
	cases := []struct {
		name    string
		yesPool float64
		noPool  float64
	}{
		{"empty", 0, 0},
		{"balanced", 500, 500},
		{"skewed", 999.99, 0.01},
		{"fractional", 1.0 / 3.0, 2.0 / 7.0},
		{"large", 1e12, 3.7e11},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yes, no := Odds(market(tc.yesPool, tc.noPool))
			assert.Equal(t, 1.0, yes+no)
		})
	}
}

func TestPotentialPayout_FirstBetTakesWholePool(t *testing.T) {
	// First bet into an empty market owns the whole side, so the
	// projection returns the bet itself.
	payout := PotentialPayout(market(0, 0), domain.OutcomeYes, 100)
	assert.Equal(t, 100.0, payout)
}

func TestPotentialPayout_SplitsTotalProRata(t *testing.T) {
	// total' = 700+300+100 = 1100, yes' = 800, share = 100/800.
	payout := PotentialPayout(market(700, 300), domain.OutcomeYes, 100)
	assert.InDelta(t, 137.5, payout, 1e-9)
}

func TestPotentialPayout_NoSide(t *testing.T) {
	// total' = 1100, no' = 400, share = 100/400.
	payout := PotentialPayout(market(700, 300), domain.OutcomeNo, 100)
	assert.InDelta(t, 275.0, payout, 1e-9)
}

func TestPotentialPayout_DoesNotMutateMarket(t *testing.T) {
	m := market(700, 300)
	PotentialPayout(m, domain.OutcomeYes, 100)
	assert.Equal(t, 700.0, m.YesPool)
	assert.Equal(t, 300.0, m.NoPool)
}
