package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/ledger"
)

// BetLedger is the slice of the ledger the bet service needs.
type BetLedger interface {
	PlaceBet(ctx context.Context, marketID int64, user string, outcome domain.Outcome, amount float64) (ledger.BetReceipt, error)
	ListPositions(user string) []domain.Position
	Balance(user string) float64
}

// BetService accepts bets and serves per-user positions and balances.
type BetService struct {
	ledger BetLedger
	bus    domain.SignalBus // optional
	logger *slog.Logger
}

// NewBetService creates a BetService. bus may be nil.
func NewBetService(ledger BetLedger, bus domain.SignalBus, logger *slog.Logger) *BetService {
	return &BetService{
		ledger: ledger,
		bus:    bus,
		logger: logger.With(slog.String("component", "bet_service")),
	}
}

// PlaceBet stakes amount on outcome for user and announces the bet.
func (s *BetService) PlaceBet(ctx context.Context, marketID int64, user string, outcome domain.Outcome, amount float64) (ledger.BetReceipt, error) {
	receipt, err := s.ledger.PlaceBet(ctx, marketID, user, outcome, amount)
	if err != nil {
		return ledger.BetReceipt{}, fmt.Errorf("bet_service: place bet: %w", err)
	}

	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"event":     "bet_placed",
			"market_id": marketID,
			"user":      user,
			"outcome":   string(outcome),
			"amount":    amount,
		})
		if err := s.bus.Publish(ctx, domain.ChannelBets, payload); err != nil {
			s.logger.WarnContext(ctx, "publish bet event failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return receipt, nil
}

// Positions returns every position held by user.
func (s *BetService) Positions(user string) []domain.Position {
	return s.ledger.ListPositions(user)
}

// Balance returns user's current balance, seeding the starting balance on
// first sight.
func (s *BetService) Balance(user string) float64 {
	return s.ledger.Balance(user)
}
