package reconcile

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/ledger"
	"github.com/xuanbach0212/predictum/internal/platform/chain"
)

// fakeChain serves canned per-market responses and counts queries.
type fakeChain struct {
	markets map[int64]*chain.Market
	err     error
	calls   atomic.Int32
}

func (f *fakeChain) Market(ctx context.Context, id int64) (*chain.Market, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.markets[id], nil
}

func testConfig() Config {
	return Config{
		Interval:     10 * time.Millisecond,
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
	}
}

func newFixture(t *testing.T, fc *fakeChain) (*Monitor, *ledger.Ledger, domain.Market) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.New(nil, 10000, logger)
	m, err := l.CreateMarket(context.Background(), "Will it rain tomorrow?", domain.CategoryBinary, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return NewMonitor(fc, l, testConfig(), nil, nil, logger), l, m
}

func remoteFor(m domain.Market) *chain.Market {
	return &chain.Market{
		ID:        m.ID,
		Question:  m.Question,
		Category:  string(m.Category),
		Status:    string(m.Status),
		EndTime:   domain.TimeToTimestamp(m.EndTime),
		CreatedAt: domain.TimeToTimestamp(m.CreatedAt),
		Creator:   "0xfeed",
	}
}

func TestCheckMarket_Synced(t *testing.T) {
	fc := &fakeChain{markets: map[int64]*chain.Market{}}
	mon, _, m := newFixture(t, fc)
	fc.markets[m.ID] = remoteFor(m)

	rec := mon.CheckMarket(context.Background(), m.ID)
	assert.Equal(t, domain.SyncStatusSynced, rec.Status)
	assert.Equal(t, m.ID, rec.MarketID)
	assert.False(t, rec.LastCheckedAt.IsZero())
}

func TestCheckMarket_PendingWhenRemoteMissing(t *testing.T) {
	fc := &fakeChain{markets: map[int64]*chain.Market{}}
	mon, _, m := newFixture(t, fc)

	rec := mon.CheckMarket(context.Background(), m.ID)
	assert.Equal(t, domain.SyncStatusPending, rec.Status)
	// A missing record is a valid empty result: exactly one query, no retries.
	assert.Equal(t, int32(1), fc.calls.Load())
}

func TestCheckMarket_PendingWhenFieldsDiverge(t *testing.T) {
	fc := &fakeChain{markets: map[int64]*chain.Market{}}
	mon, l, m := newFixture(t, fc)
	fc.markets[m.ID] = remoteFor(m)

	// Local resolves; the remote replica still shows Active.
	_, err := l.ResolveMarket(context.Background(), m.ID, domain.OutcomeYes)
	require.NoError(t, err)

	rec := mon.CheckMarket(context.Background(), m.ID)
	assert.Equal(t, domain.SyncStatusPending, rec.Status)
}

func TestCheckMarket_FailedAfterRetriesAndHotPathUnaffected(t *testing.T) {
	fc := &fakeChain{err: &chain.RemoteError{StatusCode: 502, Body: "bad gateway"}}
	mon, l, m := newFixture(t, fc)

	rec := mon.CheckMarket(context.Background(), m.ID)
	assert.Equal(t, domain.SyncStatusFailed, rec.Status)
	assert.Equal(t, int32(3), fc.calls.Load()) // exhausted maxRetries

	// A failed reconciliation never blocks local betting.
	_, err := l.PlaceBet(context.Background(), m.ID, "alice", domain.OutcomeYes, 50)
	assert.NoError(t, err)
}

func TestStatus_UnknownMarket(t *testing.T) {
	fc := &fakeChain{markets: map[int64]*chain.Market{}}
	mon, _, _ := newFixture(t, fc)

	_, ok := mon.Status(404)
	assert.False(t, ok)
}

func TestWatcher_PollsAndStopsCleanly(t *testing.T) {
	fc := &fakeChain{markets: map[int64]*chain.Market{}}
	mon, _, m := newFixture(t, fc)
	fc.markets[m.ID] = remoteFor(m)

	w := mon.Watch(context.Background(), m.ID)

	// Wait for at least the immediate check plus one tick.
	require.Eventually(t, func() bool {
		return fc.calls.Load() >= 2
	}, time.Second, time.Millisecond)

	rec, ok := mon.Status(m.ID)
	require.True(t, ok)
	assert.Equal(t, domain.SyncStatusSynced, rec.Status)

	w.Stop()
	calls := fc.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, fc.calls.Load(), "no polls after Stop")

	// Stop is idempotent.
	w.Stop()
}

func TestWatch_Idempotent(t *testing.T) {
	fc := &fakeChain{markets: map[int64]*chain.Market{}}
	mon, _, m := newFixture(t, fc)

	w1 := mon.Watch(context.Background(), m.ID)
	w2 := mon.Watch(context.Background(), m.ID)
	assert.Same(t, w1, w2)
	w1.Stop()
}

func TestRun_StopsAllWatchersOnCancel(t *testing.T) {
	fc := &fakeChain{markets: map[int64]*chain.Market{}}
	mon, l, m := newFixture(t, fc)
	fc.markets[m.ID] = remoteFor(m)

	_, err := l.CreateMarket(context.Background(), "second", domain.CategorySports, time.Now().Add(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok1 := mon.Status(m.ID)
		_, ok2 := mon.Status(m.ID + 1)
		return ok1 && ok2
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mon.mu.Lock()
	remaining := len(mon.watchers)
	mon.mu.Unlock()
	assert.Zero(t, remaining)
}
