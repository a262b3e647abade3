package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuanbach0212/predictum/internal/domain"
)

// MarketLedger is the slice of the ledger the market service needs.
type MarketLedger interface {
	CreateMarket(ctx context.Context, question string, category domain.Category, endTime time.Time) (domain.Market, error)
	ResolveMarket(ctx context.Context, marketID int64, outcome domain.Outcome) (domain.Market, error)
	LockMarket(ctx context.Context, marketID int64) (domain.Market, error)
	GetMarket(marketID int64) (domain.Market, error)
	ListMarkets() []domain.Market
}

// ListOpts are the read-side listing parameters. Zero-value fields mean
// "no filter"; SortBy defaults to ending-soon.
type ListOpts struct {
	Page     int
	Limit    int
	Status   domain.MarketStatus
	Category domain.Category
	SortBy   string
}

// Supported sort orders for market listings.
const (
	SortNewest       = "newest"
	SortEndingSoon   = "ending-soon"
	SortPopular      = "popular"
	SortAlphabetical = "alphabetical"
)

// Pagination describes the page window of a listing response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// MarketPage is one page of market listings.
type MarketPage struct {
	Markets    []domain.Market `json:"markets"`
	Pagination Pagination      `json:"pagination"`
}

// MarketService serves market reads and the privileged create/resolve
// operations, publishing lifecycle events on the signal bus.
type MarketService struct {
	ledger MarketLedger
	bus    domain.SignalBus // optional
	logger *slog.Logger
}

// NewMarketService creates a MarketService. bus may be nil.
func NewMarketService(ledger MarketLedger, bus domain.SignalBus, logger *slog.Logger) *MarketService {
	return &MarketService{
		ledger: ledger,
		bus:    bus,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// List returns one page of markets after filtering and sorting the ledger
// snapshot.
func (s *MarketService) List(opts ListOpts) MarketPage {
	markets := s.ledger.ListMarkets()

	filtered := markets[:0]
	for _, m := range markets {
		if opts.Status != "" && m.Status != opts.Status {
			continue
		}
		if opts.Category != "" && m.Category != opts.Category {
			continue
		}
		filtered = append(filtered, m)
	}

	switch opts.SortBy {
	case SortNewest:
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		})
	case SortPopular:
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].TotalPool() > filtered[j].TotalPool()
		})
	case SortAlphabetical:
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].Question < filtered[j].Question
		})
	default: // SortEndingSoon
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].EndTime.Before(filtered[j].EndTime)
		})
	}

	page, limit := opts.Page, opts.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	total := len(filtered)
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return MarketPage{
		Markets: append([]domain.Market{}, filtered[start:end]...),
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}

// Get returns a single market snapshot.
func (s *MarketService) Get(marketID int64) (domain.Market, error) {
	return s.ledger.GetMarket(marketID)
}

// Create opens a new market and announces it.
func (s *MarketService) Create(ctx context.Context, question string, category domain.Category, endTime time.Time) (domain.Market, error) {
	m, err := s.ledger.CreateMarket(ctx, question, category, endTime)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}

	s.publish(ctx, map[string]any{
		"event":     "market_created",
		"market_id": m.ID,
		"question":  m.Question,
		"category":  string(m.Category),
	})
	return m, nil
}

// Resolve finalizes a market with the winning outcome and announces it.
// Caller authorization happens at the API boundary.
func (s *MarketService) Resolve(ctx context.Context, marketID int64, outcome domain.Outcome) (domain.Market, error) {
	m, err := s.ledger.ResolveMarket(ctx, marketID, outcome)
	if err != nil {
		return domain.Market{}, err
	}

	s.publish(ctx, map[string]any{
		"event":     "market_resolved",
		"market_id": m.ID,
		"outcome":   string(outcome),
	})
	return m, nil
}

func (s *MarketService) publish(ctx context.Context, event map[string]any) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(event)
	if err := s.bus.Publish(ctx, domain.ChannelMarkets, payload); err != nil {
		s.logger.WarnContext(ctx, "publish market event failed",
			slog.String("error", err.Error()),
		)
	}
}
