// Package settlement computes and releases claimable payouts once a market
// is resolved. The ledger enforces single-claim semantics; this package owns
// the pari-mutuel payout math and the claim orchestration around it.
package settlement

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/ledger"
)

// Ledger is the slice of the market ledger the engine needs. Declared
// locally so the engine does not depend on the concrete implementation.
type Ledger interface {
	Claim(ctx context.Context, marketID int64, user string, compute ledger.PayoutFunc) (float64, error)
	Balance(user string) float64
}

// Payout computes the pari-mutuel payout owed to a position on a resolved
// market: the total pool split pro rata over winning-side shares, floored
// to match what the chain's integer division would pay. A market resolved
// with no stake on the winning side pays zero -- that is a valid outcome,
// not an error.
func Payout(m domain.Market, p domain.Position) float64 {
	if m.WinningOutcome == nil {
		return 0
	}

	winningShares := m.TotalNoShares
	userShares := p.NoShares
	if *m.WinningOutcome == domain.OutcomeYes {
		winningShares = m.TotalYesShares
		userShares = p.YesShares
	}
	if winningShares == 0 || userShares == 0 {
		return 0
	}

	return math.Floor(m.TotalPool() * userShares / winningShares)
}

// ClaimResult is the post-commit outcome of a claim.
type ClaimResult struct {
	Payout  float64 `json:"payout"`
	Balance float64 `json:"balance"`
}

// Engine releases payouts through the ledger's atomic claim transition.
type Engine struct {
	ledger Ledger
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewEngine creates an Engine. bus may be nil to disable event publishing.
func NewEngine(l Ledger, bus domain.SignalBus, logger *slog.Logger) *Engine {
	return &Engine{
		ledger: l,
		bus:    bus,
		logger: logger.With(slog.String("component", "settlement")),
	}
}

// Claim settles the user's position on the market. Once the ledger reports
// a claim the transition is final: a repeat call surfaces
// domain.ErrAlreadyClaimed and never re-pays.
func (e *Engine) Claim(ctx context.Context, marketID int64, user string) (ClaimResult, error) {
	payout, err := e.ledger.Claim(ctx, marketID, user, Payout)
	if err != nil {
		return ClaimResult{}, err
	}

	res := ClaimResult{Payout: payout, Balance: e.ledger.Balance(user)}

	if e.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":     "winnings_claimed",
			"market_id": marketID,
			"user":      user,
			"payout":    payout,
		})
		if pubErr := e.bus.Publish(ctx, domain.ChannelClaims, evt); pubErr != nil {
			e.logger.WarnContext(ctx, "publish claim event failed",
				slog.Int64("market_id", marketID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	return res, nil
}
