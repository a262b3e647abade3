package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/xuanbach0212/predictum/internal/settlement"
)

// ClaimService defines what the claim handler needs from the settlement
// engine.
type ClaimService interface {
	Claim(ctx context.Context, marketID int64, user string) (settlement.ClaimResult, error)
}

// ClaimHandler serves the winnings-claim endpoint.
type ClaimHandler struct {
	claims ClaimService
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(claims ClaimService, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{claims: claims, logger: logger}
}

// claimRequest is the body for POST /api/markets/{id}/claim.
type claimRequest struct {
	User string `json:"user"`
}

// Claim pays out a user's winning position exactly once.
// POST /api/markets/{id}/claim
func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "missing user")
		return
	}

	result, err := h.claims.Claim(r.Context(), id, req.User)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: claim failed",
				slog.Int64("market_id", id),
				slog.String("user", req.User),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, domainMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}
