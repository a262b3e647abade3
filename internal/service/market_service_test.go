package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuanbach0212/predictum/internal/domain"
)

type stubLedger struct {
	markets []domain.Market
	created []domain.Market
}

func (s *stubLedger) CreateMarket(_ context.Context, question string, category domain.Category, endTime time.Time) (domain.Market, error) {
	m := domain.Market{
		ID:       int64(len(s.created) + 1),
		Question: question,
		Category: category,
		Status:   domain.MarketStatusActive,
		EndTime:  endTime,
	}
	s.created = append(s.created, m)
	return m, nil
}

func (s *stubLedger) ResolveMarket(_ context.Context, marketID int64, outcome domain.Outcome) (domain.Market, error) {
	for i := range s.markets {
		if s.markets[i].ID == marketID {
			s.markets[i].Status = domain.MarketStatusResolved
			s.markets[i].WinningOutcome = &outcome
			return s.markets[i], nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *stubLedger) LockMarket(_ context.Context, marketID int64) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (s *stubLedger) GetMarket(marketID int64) (domain.Market, error) {
	for _, m := range s.markets {
		if m.ID == marketID {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *stubLedger) ListMarkets() []domain.Market {
	out := make([]domain.Market, len(s.markets))
	copy(out, s.markets)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureMarkets() []domain.Market {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Market{
		{ID: 1, Question: "Will BTC close above 100k?", Category: domain.CategoryCrypto, Status: domain.MarketStatusActive, EndTime: base.Add(72 * time.Hour), CreatedAt: base, YesPool: 500, NoPool: 300},
		{ID: 2, Question: "Arsenal to win the league?", Category: domain.CategorySports, Status: domain.MarketStatusActive, EndTime: base.Add(24 * time.Hour), CreatedAt: base.Add(time.Hour), YesPool: 100, NoPool: 100},
		{ID: 3, Question: "Snow in Paris this week?", Category: domain.CategoryBinary, Status: domain.MarketStatusResolved, EndTime: base.Add(time.Hour), CreatedAt: base.Add(2 * time.Hour), YesPool: 900, NoPool: 400},
		{ID: 4, Question: "ETH flips BTC this year?", Category: domain.CategoryCrypto, Status: domain.MarketStatusLocked, EndTime: base.Add(48 * time.Hour), CreatedAt: base.Add(3 * time.Hour), YesPool: 50, NoPool: 20},
	}
}

func TestMarketServiceListDefaults(t *testing.T) {
	svc := NewMarketService(&stubLedger{markets: fixtureMarkets()}, nil, testLogger())

	page := svc.List(ListOpts{})

	require.Len(t, page.Markets, 4)
	// ending-soon by default
	assert.Equal(t, int64(3), page.Markets[0].ID)
	assert.Equal(t, int64(2), page.Markets[1].ID)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 20, page.Pagination.Limit)
	assert.Equal(t, 4, page.Pagination.Total)
	assert.Equal(t, 1, page.Pagination.TotalPages)
}

func TestMarketServiceListFilters(t *testing.T) {
	svc := NewMarketService(&stubLedger{markets: fixtureMarkets()}, nil, testLogger())

	byStatus := svc.List(ListOpts{Status: domain.MarketStatusActive})
	require.Len(t, byStatus.Markets, 2)
	for _, m := range byStatus.Markets {
		assert.Equal(t, domain.MarketStatusActive, m.Status)
	}

	byCategory := svc.List(ListOpts{Category: domain.CategoryCrypto})
	require.Len(t, byCategory.Markets, 2)

	both := svc.List(ListOpts{Status: domain.MarketStatusActive, Category: domain.CategoryCrypto})
	require.Len(t, both.Markets, 1)
	assert.Equal(t, int64(1), both.Markets[0].ID)
}

func TestMarketServiceListSorts(t *testing.T) {
	svc := NewMarketService(&stubLedger{markets: fixtureMarkets()}, nil, testLogger())

	newest := svc.List(ListOpts{SortBy: SortNewest})
	assert.Equal(t, int64(4), newest.Markets[0].ID)

	popular := svc.List(ListOpts{SortBy: SortPopular})
	assert.Equal(t, int64(3), popular.Markets[0].ID)
	assert.Equal(t, int64(1), popular.Markets[1].ID)

	alpha := svc.List(ListOpts{SortBy: SortAlphabetical})
	assert.Equal(t, int64(2), alpha.Markets[0].ID)
}

func TestMarketServiceListPagination(t *testing.T) {
	svc := NewMarketService(&stubLedger{markets: fixtureMarkets()}, nil, testLogger())

	page1 := svc.List(ListOpts{Page: 1, Limit: 3, SortBy: SortNewest})
	require.Len(t, page1.Markets, 3)
	assert.Equal(t, 2, page1.Pagination.TotalPages)

	page2 := svc.List(ListOpts{Page: 2, Limit: 3, SortBy: SortNewest})
	require.Len(t, page2.Markets, 1)
	assert.Equal(t, int64(1), page2.Markets[0].ID)

	beyond := svc.List(ListOpts{Page: 5, Limit: 3})
	assert.Empty(t, beyond.Markets)
	assert.Equal(t, 4, beyond.Pagination.Total)
}

func TestMarketServiceCreateAndResolve(t *testing.T) {
	stub := &stubLedger{markets: fixtureMarkets()}
	svc := NewMarketService(stub, nil, testLogger())

	end := time.Now().Add(24 * time.Hour)
	m, err := svc.Create(context.Background(), "New market?", domain.CategoryBinary, end)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusActive, m.Status)
	assert.Equal(t, "New market?", m.Question)

	resolved, err := svc.Resolve(context.Background(), 1, domain.OutcomeYes)
	require.NoError(t, err)
	require.NotNil(t, resolved.WinningOutcome)
	assert.Equal(t, domain.OutcomeYes, *resolved.WinningOutcome)
}
