// Package oracle auto-manages crypto markets from live price data: it opens
// price-threshold markets against the CoinGecko listing and, once a market
// it opened expires, resolves it by comparing the spot price with the
// threshold recorded at creation. Markets the oracle did not open are never
// touched.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/xuanbach0212/predictum/internal/domain"
)

// Ledger is the slice of the market ledger the oracle needs.
type Ledger interface {
	CreateMarket(ctx context.Context, question string, category domain.Category, endTime time.Time) (domain.Market, error)
	ResolveMarket(ctx context.Context, marketID int64, outcome domain.Outcome) (domain.Market, error)
	ListMarkets() []domain.Market
}

// PriceSource serves spot prices. Satisfied by *CoinGecko.
type PriceSource interface {
	TopCoins(ctx context.Context, limit int) ([]Coin, error)
	Price(ctx context.Context, coinID string) (*Coin, error)
}

// Config controls the oracle's cadence and market creation.
type Config struct {
	// Interval between sweeps. Each sweep resolves expired markets and,
	// when CreateMarkets is set, opens one new market.
	Interval time.Duration

	// CreateMarkets enables automatic market creation; resolution of
	// already-opened markets always runs.
	CreateMarkets bool

	// TopCoins is how many coins by market cap are candidates for new
	// markets.
	TopCoins int
}

// rule records how to settle a market the oracle opened: Yes iff the coin's
// spot price at expiry is at or above the threshold.
type rule struct {
	coinID    string
	threshold float64
}

// horizon is one market shape the oracle can open. The factor scales the
// coin's current price into the question's threshold.
type horizon struct {
	template string
	duration time.Duration
	factor   float64
}

var horizons = []horizon{
	{"Will %s be above %s in 24 hours?", 24 * time.Hour, 1.05},
	{"Will %s reach %s within a week?", 7 * 24 * time.Hour, 1.10},
	{"Will %s break %s within 30 days?", 30 * 24 * time.Hour, 1.20},
	{"Will %s hold above %s for the next 48 hours?", 48 * time.Hour, 0.95},
}

// Oracle opens and settles price-threshold crypto markets.
type Oracle struct {
	ledger Ledger
	prices PriceSource
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	rules map[int64]rule

	now  func() time.Time
	intn func(int) int
}

// New creates an Oracle. It holds no background state until Run is called.
func New(ledger Ledger, prices PriceSource, cfg Config, logger *slog.Logger) *Oracle {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.TopCoins <= 0 {
		cfg.TopCoins = 15
	}
	return &Oracle{
		ledger: ledger,
		prices: prices,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "oracle")),
		rules:  make(map[int64]rule),
		now:    time.Now,
		intn:   rand.IntN,
	}
}

// Run sweeps until the context is cancelled. It always returns nil: a price
// feed outage degrades to warnings, never takes the process down.
func (o *Oracle) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "oracle starting",
		slog.Duration("interval", o.cfg.Interval),
		slog.Bool("create_markets", o.cfg.CreateMarkets),
	)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("oracle stopped")
			return nil
		case <-ticker.C:
			if n := o.ResolveExpired(ctx); n > 0 {
				o.logger.InfoContext(ctx, "oracle resolved expired markets",
					slog.Int("count", n),
				)
			}
			if o.cfg.CreateMarkets {
				if _, err := o.CreateMarket(ctx); err != nil {
					o.logger.WarnContext(ctx, "oracle market creation failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}

// CreateMarket opens one price-threshold market for a random top coin and
// records its settlement rule.
func (o *Oracle) CreateMarket(ctx context.Context) (domain.Market, error) {
	coins, err := o.prices.TopCoins(ctx, o.cfg.TopCoins)
	if err != nil {
		return domain.Market{}, fmt.Errorf("oracle: list coins: %w", err)
	}
	if len(coins) == 0 {
		return domain.Market{}, fmt.Errorf("oracle: empty coin listing")
	}

	coin := coins[o.intn(len(coins))]
	h := horizons[o.intn(len(horizons))]
	threshold := coin.CurrentPrice * h.factor
	question := fmt.Sprintf(h.template, coin.Name, formatPrice(threshold))

	m, err := o.ledger.CreateMarket(ctx, question, domain.CategoryCrypto, o.now().Add(h.duration))
	if err != nil {
		return domain.Market{}, fmt.Errorf("oracle: create market: %w", err)
	}

	o.mu.Lock()
	o.rules[m.ID] = rule{coinID: coin.ID, threshold: threshold}
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "oracle opened market",
		slog.Int64("market_id", m.ID),
		slog.String("coin", coin.ID),
		slog.Float64("threshold", threshold),
		slog.Time("end_time", m.EndTime),
	)
	return m, nil
}

// ResolveExpired settles every oracle-opened market past its end time by
// comparing the spot price against the recorded threshold. A failed price
// lookup leaves the market for the next sweep. Returns how many markets
// were resolved.
func (o *Oracle) ResolveExpired(ctx context.Context) int {
	now := o.now()
	resolved := 0

	for _, m := range o.ledger.ListMarkets() {
		if m.Status.Terminal() {
			o.forget(m.ID)
			continue
		}

		o.mu.Lock()
		r, ok := o.rules[m.ID]
		o.mu.Unlock()
		if !ok || now.Before(m.EndTime) {
			continue
		}

		coin, err := o.prices.Price(ctx, r.coinID)
		if err != nil {
			o.logger.WarnContext(ctx, "oracle price lookup failed",
				slog.Int64("market_id", m.ID),
				slog.String("coin", r.coinID),
				slog.String("error", err.Error()),
			)
			continue
		}

		outcome := domain.OutcomeNo
		if coin.CurrentPrice >= r.threshold {
			outcome = domain.OutcomeYes
		}

		if _, err := o.ledger.ResolveMarket(ctx, m.ID, outcome); err != nil {
			o.logger.WarnContext(ctx, "oracle resolve failed",
				slog.Int64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		o.forget(m.ID)
		resolved++

		o.logger.InfoContext(ctx, "oracle settled market",
			slog.Int64("market_id", m.ID),
			slog.String("outcome", string(outcome)),
			slog.Float64("spot", coin.CurrentPrice),
			slog.Float64("threshold", r.threshold),
		)
	}

	return resolved
}

func (o *Oracle) forget(marketID int64) {
	o.mu.Lock()
	delete(o.rules, marketID)
	o.mu.Unlock()
}

// formatPrice renders a threshold with precision appropriate to its size,
// so "$105000" and "$0.4321" both read naturally in a question.
func formatPrice(v float64) string {
	switch {
	case v >= 1000:
		return fmt.Sprintf("$%.0f", v)
	case v >= 1:
		return fmt.Sprintf("$%.2f", v)
	default:
		return fmt.Sprintf("$%.4f", v)
	}
}
