package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGeckoConfig configures the price client. A zero BaseURL targets the
// public CoinGecko API; tests point it at a double.
type CoinGeckoConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Coin is one row of the CoinGecko markets listing.
type Coin struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	CurrentPrice   float64 `json:"current_price"`
	PriceChange24h float64 `json:"price_change_percentage_24h"`
	MarketCap      float64 `json:"market_cap"`
}

// CoinGecko fetches spot prices from the CoinGecko markets API.
type CoinGecko struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGecko creates a price client from the given configuration.
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultCoinGeckoURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &CoinGecko{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TopCoins lists the top limit coins by market cap.
func (c *CoinGecko) TopCoins(ctx context.Context, limit int) ([]Coin, error) {
	endpoint := fmt.Sprintf("%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=1&sparkline=false",
		c.baseURL, limit)

	var coins []Coin
	if err := c.get(ctx, endpoint, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// Price fetches the current price row for a single coin.
func (c *CoinGecko) Price(ctx context.Context, coinID string) (*Coin, error) {
	endpoint := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s",
		c.baseURL, url.QueryEscape(coinID))

	var coins []Coin
	if err := c.get(ctx, endpoint, &coins); err != nil {
		return nil, err
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("coingecko: coin %q not listed", coinID)
	}
	return &coins[0], nil
}

func (c *CoinGecko) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("coingecko: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("coingecko: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko: decode response: %w", err)
	}
	return nil
}
