package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/pricing"
	"github.com/xuanbach0212/predictum/internal/service"
)

// MarketService defines what the market handler needs from the service layer.
type MarketService interface {
	List(opts service.ListOpts) service.MarketPage
	Get(marketID int64) (domain.Market, error)
	Create(ctx context.Context, question string, category domain.Category, endTime time.Time) (domain.Market, error)
	Resolve(ctx context.Context, marketID int64, outcome domain.Outcome) (domain.Market, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	sync    domain.SyncCache // optional
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. syncCache may be nil.
func NewMarketHandler(markets MarketService, syncCache domain.SyncCache, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		sync:    syncCache,
		logger:  logger,
	}
}

// ListMarkets returns a filtered, sorted page of markets.
// GET /api/markets?page=1&limit=20&status=Active&category=Crypto&sortBy=ending-soon
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := service.ListOpts{
		Status:   domain.MarketStatus(q.Get("status")),
		Category: domain.Category(q.Get("category")),
		SortBy:   q.Get("sortBy"),
	}
	if opts.Status != "" && !opts.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	if opts.Category != "" && !opts.Category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category filter")
		return
	}
	opts.Page = intParam(q.Get("page"), 1)
	opts.Limit = intParam(q.Get("limit"), 20)
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	writeJSON(w, http.StatusOK, h.markets.List(opts))
}

// GetMarket returns a single market by id.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.markets.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.Int64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// createMarketRequest is the body for POST /api/markets.
type createMarketRequest struct {
	Question string    `json:"question"`
	Category string    `json:"category"`
	EndTime  time.Time `json:"endTime"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Create(r.Context(), req.Question, domain.Category(req.Category), req.EndTime)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: create market failed",
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, domainMessage(err))
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// resolveMarketRequest is the body for POST /api/markets/{id}/resolve.
type resolveMarketRequest struct {
	Outcome string `json:"outcome"`
}

// ResolveMarket finalizes a market with its winning outcome.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req resolveMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Resolve(r.Context(), id, domain.Outcome(req.Outcome))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: resolve market failed",
				slog.Int64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, domainMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// quoteResponse carries the implied odds for a market and, when the caller
// supplied a prospective bet, the payout it would receive if that side wins.
type quoteResponse struct {
	MarketID        int64    `json:"marketId"`
	YesOdds         float64  `json:"yesOdds"`
	NoOdds          float64  `json:"noOdds"`
	PotentialPayout *float64 `json:"potentialPayout,omitempty"`
}

// Quote returns the current implied odds for a market, and optionally a
// payout projection for a prospective bet.
// GET /api/markets/{id}/quote?outcome=Yes&amount=100
func (h *MarketHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.markets.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	resp := quoteResponse{MarketID: id}
	resp.YesOdds, resp.NoOdds = pricing.Odds(market)

	q := r.URL.Query()
	if raw := q.Get("amount"); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil || amount <= 0 {
			writeError(w, http.StatusBadRequest, "amount must be a positive number")
			return
		}
		outcome := domain.Outcome(q.Get("outcome"))
		if outcome != domain.OutcomeYes && outcome != domain.OutcomeNo {
			writeError(w, http.StatusBadRequest, "outcome must be Yes or No")
			return
		}
		payout := pricing.PotentialPayout(market, outcome, amount)
		resp.PotentialPayout = &payout
	}

	writeJSON(w, http.StatusOK, resp)
}

// SyncStatus returns the advisory reconciliation status for a market. A
// market the monitor has not reported on yet shows as "checking".
// GET /api/markets/{id}/sync
func (h *MarketHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	if _, err := h.markets.Get(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	rec := domain.SyncRecord{MarketID: id, Status: domain.SyncStatusChecking}
	if h.sync != nil {
		cached, err := h.sync.Get(r.Context(), id)
		switch {
		case err == nil:
			rec = cached
		case !errors.Is(err, domain.ErrNotFound):
			h.logger.WarnContext(r.Context(), "handler: sync cache read failed",
				slog.Int64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, rec)
}

// intParam parses a positive integer query parameter, falling back to def.
func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
