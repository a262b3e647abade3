package settlement

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/ledger"
)

func outcome(o domain.Outcome) *domain.Outcome { return &o }

func TestPayout_ProRataShare(t *testing.T) {
	// Total pool 1000, winning (Yes) shares 400, user holds 100 of them.
	m := domain.Market{
		Status:         domain.MarketStatusResolved,
		YesPool:        400,
		NoPool:         600,
		TotalYesShares: 400,
		TotalNoShares:  600,
		WinningOutcome: outcome(domain.OutcomeYes),
	}
	p := domain.Position{YesShares: 100}
	assert.Equal(t, 250.0, Payout(m, p))
}

func TestPayout_NoWinningStake(t *testing.T) {
	m := domain.Market{
		Status:         domain.MarketStatusResolved,
		NoPool:         500,
		TotalNoShares:  500,
		WinningOutcome: outcome(domain.OutcomeYes),
	}
	p := domain.Position{NoShares: 500}
	assert.Equal(t, 0.0, Payout(m, p))
}

func TestPayout_LoserGetsNothing(t *testing.T) {
	m := domain.Market{
		Status:         domain.MarketStatusResolved,
		YesPool:        400,
		NoPool:         600,
		TotalYesShares: 400,
		TotalNoShares:  600,
		WinningOutcome: outcome(domain.OutcomeNo),
	}
	p := domain.Position{YesShares: 400}
	assert.Equal(t, 0.0, Payout(m, p))
}

func TestPayout_FloorsFractions(t *testing.T) {
	m := domain.Market{
		Status:         domain.MarketStatusResolved,
		YesPool:        100,
		NoPool:         0,
		TotalYesShares: 3,
		WinningOutcome: outcome(domain.OutcomeYes),
	}
	p := domain.Position{YesShares: 1}
	assert.Equal(t, 33.0, Payout(m, p)) // floor(100/3)
}

func newEngine(t *testing.T) (*Engine, *ledger.Ledger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.New(nil, 10000, logger)
	return NewEngine(l, nil, logger), l
}

func TestEngine_ClaimLifecycle(t *testing.T) {
	e, l := newEngine(t)
	ctx := context.Background()

	m, err := l.CreateMarket(ctx, "q", domain.CategoryBinary, time.Now().Add(time.Hour))
	require.NoError(t, err)

	// alice bets 100 on Yes, bob 300 on Yes, carol 600 on No. Yes wins.
	_, err = l.PlaceBet(ctx, m.ID, "alice", domain.OutcomeYes, 100)
	require.NoError(t, err)
	_, err = l.PlaceBet(ctx, m.ID, "bob", domain.OutcomeYes, 300)
	require.NoError(t, err)
	_, err = l.PlaceBet(ctx, m.ID, "carol", domain.OutcomeNo, 600)
	require.NoError(t, err)

	// Claim before resolution is rejected.
	_, err = e.Claim(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrNotResolved)

	_, err = l.ResolveMarket(ctx, m.ID, domain.OutcomeYes)
	require.NoError(t, err)

	res, err := e.Claim(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 250.0, res.Payout) // 1000 * 100/400
	assert.Equal(t, 10000.0-100+250, res.Balance)

	// Second claim always fails and pays nothing.
	_, err = e.Claim(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.Equal(t, 10000.0-100+250, l.Balance("alice"))

	// Losing side claims zero, still flips claimed.
	res, err = e.Claim(ctx, m.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Payout)
	_, err = e.Claim(ctx, m.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// No position at all.
	_, err = e.Claim(ctx, m.ID, "mallory")
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestEngine_ZeroWinningPoolPaysZeroWithoutError(t *testing.T) {
	e, l := newEngine(t)
	ctx := context.Background()

	m, err := l.CreateMarket(ctx, "q", domain.CategoryBinary, time.Now().Add(time.Hour))
	require.NoError(t, err)

	// Only No-side stake, then Yes wins.
	_, err = l.PlaceBet(ctx, m.ID, "alice", domain.OutcomeNo, 500)
	require.NoError(t, err)
	_, err = l.ResolveMarket(ctx, m.ID, domain.OutcomeYes)
	require.NoError(t, err)

	res, err := e.Claim(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Payout)

	pos, err := l.GetPosition(m.ID, "alice")
	require.NoError(t, err)
	assert.True(t, pos.Claimed)
}
