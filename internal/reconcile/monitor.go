// Package reconcile periodically compares ledger state against the
// on-chain replica and exposes a per-market sync status. The comparison is
// read-only and advisory: it never mutates the ledger, and a degraded
// status never blocks bet placement or claims.
package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/platform/chain"
)

// ChainReader is the slice of the chain client the monitor needs.
type ChainReader interface {
	Market(ctx context.Context, id int64) (*chain.Market, error)
}

// LedgerReader provides read-only snapshots of the local ledger. Snapshots
// are copies; the monitor can never mutate ledger state through this.
type LedgerReader interface {
	GetMarket(marketID int64) (domain.Market, error)
	ListMarkets() []domain.Market
}

// Config controls the polling cadence and retry policy.
type Config struct {
	// Interval between polls for each watched market.
	Interval time.Duration

	// MaxRetries bounds attempts per poll before reporting Failed.
	MaxRetries int

	// InitialDelay seeds the exponential backoff between attempts.
	InitialDelay time.Duration
}

// Monitor owns all SyncRecords and the per-market polling goroutines.
type Monitor struct {
	chain  ChainReader
	ledger LedgerReader
	cfg    Config
	cache  domain.SyncCache // optional
	bus    domain.SignalBus // optional
	logger *slog.Logger

	mu       sync.Mutex
	records  map[int64]domain.SyncRecord
	watchers map[int64]*Watcher
	now      func() time.Time
}

// NewMonitor creates a Monitor. cache and bus may be nil.
func NewMonitor(chain ChainReader, ledger LedgerReader, cfg Config, cache domain.SyncCache, bus domain.SignalBus, logger *slog.Logger) *Monitor {
	return &Monitor{
		chain:    chain,
		ledger:   ledger,
		cfg:      cfg,
		cache:    cache,
		bus:      bus,
		logger:   logger.With(slog.String("component", "reconcile")),
		records:  make(map[int64]domain.SyncRecord),
		watchers: make(map[int64]*Watcher),
		now:      time.Now,
	}
}

// Watcher is the handle for one market's polling loop. Stop cancels the
// loop and blocks until its goroutine has exited, so no timers survive it.
type Watcher struct {
	marketID int64
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Stop cancels the polling loop and waits for it to exit. Safe to call
// multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Watch starts (or returns the existing) polling loop for a market. The
// loop checks immediately, then on every interval tick, until Stop is
// called or ctx is cancelled.
func (m *Monitor) Watch(ctx context.Context, marketID int64) *Watcher {
	m.mu.Lock()
	if w, ok := m.watchers[marketID]; ok {
		m.mu.Unlock()
		return w
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		marketID: marketID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.watchers[marketID] = w
	m.mu.Unlock()

	go m.runLoop(loopCtx, w)
	return w
}

func (m *Monitor) runLoop(ctx context.Context, w *Watcher) {
	defer close(w.done)
	defer func() {
		m.mu.Lock()
		delete(m.watchers, w.marketID)
		m.mu.Unlock()
	}()

	m.CheckMarket(ctx, w.marketID)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckMarket(ctx, w.marketID)
		}
	}
}

// CheckMarket performs one reconciliation poll and returns the resulting
// record. Query failure maps to Failed, a missing remote record to Pending,
// and a present record to Synced only when the comparison fields (question
// and status) match the local snapshot exactly.
func (m *Monitor) CheckMarket(ctx context.Context, marketID int64) domain.SyncRecord {
	m.setStatus(ctx, marketID, domain.SyncStatusChecking)

	local, err := m.ledger.GetMarket(marketID)
	if err != nil {
		return m.setStatus(ctx, marketID, domain.SyncStatusFailed)
	}

	remote, err := chain.RetryWithBackoff(ctx, func(ctx context.Context) (*chain.Market, error) {
		return m.chain.Market(ctx, marketID)
	}, m.cfg.MaxRetries, m.cfg.InitialDelay)
	if err != nil {
		m.logger.WarnContext(ctx, "chain query failed",
			slog.Int64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return m.setStatus(ctx, marketID, domain.SyncStatusFailed)
	}

	if remote == nil {
		// The remote write has not landed yet.
		return m.setStatus(ctx, marketID, domain.SyncStatusPending)
	}

	if remote.Question == local.Question && remote.Status == string(local.Status) {
		return m.setStatus(ctx, marketID, domain.SyncStatusSynced)
	}
	return m.setStatus(ctx, marketID, domain.SyncStatusPending)
}

// Status returns the latest SyncRecord for a market, if any poll has run.
func (m *Monitor) Status(marketID int64) (domain.SyncRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[marketID]
	return rec, ok
}

// Run supervises watchers for every ledger market: it starts a watcher for
// each market it has not seen and retires watchers once a terminal market
// reports Synced. It blocks until ctx is cancelled, then stops all
// watchers before returning.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "reconciliation monitor starting",
		slog.Duration("interval", m.cfg.Interval),
		slog.Int("max_retries", m.cfg.MaxRetries),
	)

	m.reconcileWatchers(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.stopAll()
			m.logger.Info("reconciliation monitor stopped")
			return nil
		case <-ticker.C:
			m.reconcileWatchers(ctx)
		}
	}
}

func (m *Monitor) reconcileWatchers(ctx context.Context) {
	for _, market := range m.ledger.ListMarkets() {
		rec, polled := m.Status(market.ID)
		settled := market.Status.Terminal() && polled && rec.Status == domain.SyncStatusSynced

		m.mu.Lock()
		w, watching := m.watchers[market.ID]
		m.mu.Unlock()

		switch {
		case settled && watching:
			w.Stop()
		case !settled && !watching:
			m.Watch(ctx, market.ID)
		}
	}
}

func (m *Monitor) stopAll() {
	m.mu.Lock()
	watchers := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
}

func (m *Monitor) setStatus(ctx context.Context, marketID int64, status domain.SyncStatus) domain.SyncRecord {
	rec := domain.SyncRecord{
		MarketID:      marketID,
		Status:        status,
		LastCheckedAt: m.now().UTC(),
	}

	m.mu.Lock()
	prev, had := m.records[marketID]
	m.records[marketID] = rec
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.Set(ctx, rec); err != nil {
			m.logger.WarnContext(ctx, "sync cache write failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	// Publish only transitions, not every Checking heartbeat.
	if m.bus != nil && (!had || prev.Status != status) && status != domain.SyncStatusChecking {
		evt, _ := json.Marshal(map[string]any{
			"event":     "sync_status",
			"market_id": marketID,
			"status":    string(status),
		})
		if err := m.bus.Publish(ctx, domain.ChannelSync, evt); err != nil {
			m.logger.WarnContext(ctx, "publish sync event failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	return rec
}
