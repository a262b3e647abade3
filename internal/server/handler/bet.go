package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/ledger"
)

// BetService defines what the bet handler needs from the service layer.
type BetService interface {
	PlaceBet(ctx context.Context, marketID int64, user string, outcome domain.Outcome, amount float64) (ledger.BetReceipt, error)
	Positions(user string) []domain.Position
	Balance(user string) float64
}

// BetHandler serves bet, position, and balance endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

// placeBetRequest is the body for POST /api/bets.
type placeBetRequest struct {
	MarketID int64   `json:"marketId"`
	User     string  `json:"user"`
	Outcome  string  `json:"outcome"`
	Amount   float64 `json:"amount"`
}

// PlaceBet stakes an amount on one side of a market.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := h.bets.PlaceBet(r.Context(), req.MarketID, req.User, domain.Outcome(req.Outcome), req.Amount)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: place bet failed",
				slog.Int64("market_id", req.MarketID),
				slog.String("user", req.User),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, domainMessage(err))
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// ListPositions returns every position held by a user.
// GET /api/positions?user=alice
func (h *BetHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return
	}

	positions := h.bets.Positions(user)
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      user,
		"positions": positions,
	})
}

// GetBalance returns a user's balance, seeding the starting balance on
// first sight.
// GET /api/balance?user=alice
func (h *BetHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"balance": h.bets.Balance(user),
	})
}
