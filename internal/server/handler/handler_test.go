package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/ledger"
	"github.com/xuanbach0212/predictum/internal/service"
	"github.com/xuanbach0212/predictum/internal/settlement"
)

const startingBalance = 1000

func newTestServer(t *testing.T) (*httptest.Server, *ledger.Ledger) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.New(nil, startingBalance, logger)

	markets := service.NewMarketService(l, nil, logger)
	bets := service.NewBetService(l, nil, logger)
	claims := settlement.NewEngine(l, nil, logger)

	mux := http.NewServeMux()
	mh := NewMarketHandler(markets, nil, logger)
	bh := NewBetHandler(bets, logger)
	ch := NewClaimHandler(claims, logger)

	mux.HandleFunc("GET /api/markets", mh.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", mh.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/sync", mh.SyncStatus)
	mux.HandleFunc("GET /api/markets/{id}/quote", mh.Quote)
	mux.HandleFunc("POST /api/markets", mh.CreateMarket)
	mux.HandleFunc("POST /api/markets/{id}/resolve", mh.ResolveMarket)
	mux.HandleFunc("POST /api/bets", bh.PlaceBet)
	mux.HandleFunc("GET /api/positions", bh.ListPositions)
	mux.HandleFunc("GET /api/balance", bh.GetBalance)
	mux.HandleFunc("POST /api/markets/{id}/claim", ch.Claim)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, l
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createMarket(t *testing.T, srv *httptest.Server) domain.Market {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/markets", map[string]any{
		"question": "Will BTC close above 100k?",
		"category": "Crypto",
		"endTime":  time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var m domain.Market
	decodeBody(t, resp, &m)
	return m
}

func TestCreateAndGetMarket(t *testing.T) {
	srv, _ := newTestServer(t)

	m := createMarket(t, srv)
	assert.Equal(t, domain.MarketStatusActive, m.Status)

	resp, err := http.Get(fmt.Sprintf("%s/api/markets/%d", srv.URL, m.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.Market
	decodeBody(t, resp, &got)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Question, got.Question)
}

func TestCreateMarketValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/markets", map[string]any{
		"question": "",
		"category": "Crypto",
		"endTime":  time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The specific reason reaches the caller, without service wrap context.
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "validation failed: question is required", body["error"])

	resp = postJSON(t, srv.URL+"/api/markets", map[string]any{
		"question": "Will it rain tomorrow?",
		"category": "Weather",
		"endTime":  time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Equal(t, `validation failed: unknown category "Weather"`, body["error"])
}

func TestGetMarketNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/markets/9999")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["error"])
}

func TestListMarketsFilterAndPaginate(t *testing.T) {
	srv, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		createMarket(t, srv)
	}

	resp, err := http.Get(srv.URL + "/api/markets?status=Active&limit=2&page=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page service.MarketPage
	decodeBody(t, resp, &page)
	assert.Len(t, page.Markets, 2)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	bad, err := http.Get(srv.URL + "/api/markets?status=Bogus")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestPlaceBetAndPositions(t *testing.T) {
	srv, _ := newTestServer(t)
	m := createMarket(t, srv)

	resp := postJSON(t, srv.URL+"/api/bets", map[string]any{
		"marketId": m.ID,
		"user":     "alice",
		"outcome":  "Yes",
		"amount":   100,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var receipt ledger.BetReceipt
	decodeBody(t, resp, &receipt)
	assert.Equal(t, float64(100), receipt.Market.YesPool)
	assert.Equal(t, float64(startingBalance-100), receipt.Balance)

	posResp, err := http.Get(srv.URL + "/api/positions?user=alice")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, posResp.StatusCode)

	var positions struct {
		User      string            `json:"user"`
		Positions []domain.Position `json:"positions"`
	}
	decodeBody(t, posResp, &positions)
	require.Len(t, positions.Positions, 1)
	assert.Equal(t, float64(100), positions.Positions[0].YesShares)
}

func TestPlaceBetRejections(t *testing.T) {
	srv, _ := newTestServer(t)
	m := createMarket(t, srv)

	resp := postJSON(t, srv.URL+"/api/bets", map[string]any{
		"marketId": m.ID, "user": "alice", "outcome": "Yes", "amount": -5,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/bets", map[string]any{
		"marketId": m.ID, "user": "alice", "outcome": "Yes", "amount": startingBalance + 1,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/bets", map[string]any{
		"marketId": 404, "user": "alice", "outcome": "Yes", "amount": 10,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolveAndClaimFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	m := createMarket(t, srv)

	for _, bet := range []map[string]any{
		{"marketId": m.ID, "user": "alice", "outcome": "Yes", "amount": 100},
		{"marketId": m.ID, "user": "bob", "outcome": "No", "amount": 300},
	} {
		resp := postJSON(t, srv.URL+"/api/bets", bet)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Claim before resolution is rejected.
	early := postJSON(t, fmt.Sprintf("%s/api/markets/%d/claim", srv.URL, m.ID), map[string]any{"user": "alice"})
	early.Body.Close()
	assert.Equal(t, http.StatusConflict, early.StatusCode)

	resp := postJSON(t, fmt.Sprintf("%s/api/markets/%d/resolve", srv.URL, m.ID), map[string]any{"outcome": "Yes"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resolved domain.Market
	decodeBody(t, resp, &resolved)
	require.NotNil(t, resolved.WinningOutcome)

	resp = postJSON(t, fmt.Sprintf("%s/api/markets/%d/claim", srv.URL, m.ID), map[string]any{"user": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result settlement.ClaimResult
	decodeBody(t, resp, &result)
	assert.Equal(t, float64(400), result.Payout)

	// Second claim must not pay twice.
	again := postJSON(t, fmt.Sprintf("%s/api/markets/%d/claim", srv.URL, m.ID), map[string]any{"user": "alice"})
	again.Body.Close()
	assert.Equal(t, http.StatusConflict, again.StatusCode)

	balResp, err := http.Get(srv.URL + "/api/balance?user=alice")
	require.NoError(t, err)
	var bal struct {
		Balance float64 `json:"balance"`
	}
	decodeBody(t, balResp, &bal)
	assert.Equal(t, float64(startingBalance-100+400), bal.Balance)
}

func TestSyncStatusDefaultsToChecking(t *testing.T) {
	srv, _ := newTestServer(t)
	m := createMarket(t, srv)

	resp, err := http.Get(fmt.Sprintf("%s/api/markets/%d/sync", srv.URL, m.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec domain.SyncRecord
	decodeBody(t, resp, &rec)
	assert.Equal(t, m.ID, rec.MarketID)
	assert.Equal(t, domain.SyncStatusChecking, rec.Status)

	missing, err := http.Get(srv.URL + "/api/markets/555/sync")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestQuoteOddsAndProjection(t *testing.T) {
	srv, _ := newTestServer(t)
	m := createMarket(t, srv)

	var quote struct {
		MarketID        int64    `json:"marketId"`
		YesOdds         float64  `json:"yesOdds"`
		NoOdds          float64  `json:"noOdds"`
		PotentialPayout *float64 `json:"potentialPayout"`
	}

	// An empty market prices both sides at 0.5 and carries no projection.
	resp, err := http.Get(fmt.Sprintf("%s/api/markets/%d/quote", srv.URL, m.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &quote)
	assert.Equal(t, m.ID, quote.MarketID)
	assert.Equal(t, 0.5, quote.YesOdds)
	assert.Equal(t, 0.5, quote.NoOdds)
	assert.Nil(t, quote.PotentialPayout)

	placeBet := func(user string, outcome string, amount float64) {
		resp := postJSON(t, srv.URL+"/api/bets", map[string]any{
			"marketId": m.ID,
			"user":     user,
			"outcome":  outcome,
			"amount":   amount,
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	placeBet("alice", "Yes", 700)
	placeBet("bob", "No", 300)

	resp, err = http.Get(fmt.Sprintf("%s/api/markets/%d/quote?outcome=No&amount=100", srv.URL, m.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &quote)
	assert.InDelta(t, 0.7, quote.YesOdds, 1e-9)
	assert.InDelta(t, 0.3, quote.NoOdds, 1e-9)
	require.NotNil(t, quote.PotentialPayout)
	// 1100 total split over a 400 No pool: 100 shares pay 275.
	assert.InDelta(t, 275, *quote.PotentialPayout, 1e-9)
}

func TestQuoteRejectsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)
	m := createMarket(t, srv)

	for _, query := range []string{
		"?amount=100",             // amount without outcome
		"?outcome=Yes&amount=-5",  // negative amount
		"?outcome=Maybe&amount=1", // unknown outcome
	} {
		resp, err := http.Get(fmt.Sprintf("%s/api/markets/%d/quote%s", srv.URL, m.ID, query))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}

	missing, err := http.Get(srv.URL + "/api/markets/999/quote")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestBalanceSeedsStartingBalance(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/balance?user=fresh")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bal struct {
		User    string  `json:"user"`
		Balance float64 `json:"balance"`
	}
	decodeBody(t, resp, &bal)
	assert.Equal(t, "fresh", bal.User)
	assert.Equal(t, float64(startingBalance), bal.Balance)
}
