// Package ledger owns the authoritative in-process state for markets,
// positions, and user balances. Every state-changing operation on a market
// is serialized against every other operation on the same market; distinct
// markets proceed in parallel. Reads return copies, never references.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xuanbach0212/predictum/internal/domain"
)

// PayoutFunc computes the payout owed to a position on a resolved market.
// It must be pure; the ledger calls it inside the claim critical section.
type PayoutFunc func(domain.Market, domain.Position) float64

// BetReceipt is the post-commit state returned from a successful bet. The
// API layer reflects only this, never a speculative pre-confirmation value.
type BetReceipt struct {
	Position domain.Position `json:"position"`
	Market   domain.Market   `json:"market"`
	Balance  float64         `json:"balance"`
}

type posKey struct {
	marketID int64
	user     string
}

// Ledger holds all market, position, and balance state. The mu mutex guards
// the maps themselves and is held only for short map accesses; the per-market
// mutexes in locks serialize whole read-modify-write transitions so that two
// mutations on the same market can never interleave.
type Ledger struct {
	mu        sync.RWMutex
	markets   map[int64]domain.Market
	positions map[posKey]domain.Position
	balances  map[string]float64
	locks     map[int64]*sync.Mutex
	nextID    int64

	startingBalance float64
	store           domain.LedgerStore // optional durable mirror
	logger          *slog.Logger
	now             func() time.Time
}

// New creates an empty Ledger. store may be nil, in which case state lives
// only in memory. startingBalance is credited to a user on first sight.
func New(store domain.LedgerStore, startingBalance float64, logger *slog.Logger) *Ledger {
	return &Ledger{
		markets:         make(map[int64]domain.Market),
		positions:       make(map[posKey]domain.Position),
		balances:        make(map[string]float64),
		locks:           make(map[int64]*sync.Mutex),
		nextID:          1,
		startingBalance: startingBalance,
		store:           store,
		logger:          logger.With(slog.String("component", "ledger")),
		now:             time.Now,
	}
}

// Hydrate loads persisted state from the mirror store. It must be called
// before the ledger starts serving operations.
func (l *Ledger) Hydrate(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	markets, err := l.store.LoadMarkets(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load markets: %w", err)
	}
	positions, err := l.store.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load positions: %w", err)
	}
	balances, err := l.store.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load balances: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range markets {
		l.markets[m.ID] = m
		l.locks[m.ID] = &sync.Mutex{}
		if m.ID >= l.nextID {
			l.nextID = m.ID + 1
		}
	}
	for _, p := range positions {
		l.positions[posKey{p.MarketID, p.User}] = p
	}
	for user, bal := range balances {
		l.balances[user] = bal
	}

	l.logger.InfoContext(ctx, "ledger hydrated",
		slog.Int("markets", len(markets)),
		slog.Int("positions", len(positions)),
		slog.Int("balances", len(balances)),
	)
	return nil
}

// CreateMarket opens a new Active market with empty pools. The question must
// be non-empty, the category known, and the end time strictly in the future.
func (l *Ledger) CreateMarket(ctx context.Context, question string, category domain.Category, endTime time.Time) (domain.Market, error) {
	if question == "" {
		return domain.Market{}, fmt.Errorf("%w: question is required", domain.ErrValidation)
	}
	if !category.Valid() {
		return domain.Market{}, fmt.Errorf("%w: unknown category %q", domain.ErrValidation, category)
	}
	now := l.now().UTC()
	if !endTime.After(now) {
		return domain.Market{}, fmt.Errorf("%w: end time must be in the future", domain.ErrValidation)
	}

	l.mu.Lock()
	m := domain.Market{
		ID:        l.nextID,
		Question:  question,
		Category:  category,
		Status:    domain.MarketStatusActive,
		EndTime:   endTime.UTC(),
		CreatedAt: now,
	}
	l.nextID++
	l.markets[m.ID] = m
	l.locks[m.ID] = &sync.Mutex{}
	l.mu.Unlock()

	l.persistMarket(ctx, m)

	l.logger.InfoContext(ctx, "market created",
		slog.Int64("market_id", m.ID),
		slog.String("category", string(m.Category)),
		slog.Time("end_time", m.EndTime),
	)
	return m, nil
}

// PlaceBet adds amount to the chosen side's pool and share counter (1:1
// share issuance at bet time), upserts the caller's position, and debits
// the caller's balance. The whole transition is atomic per market.
func (l *Ledger) PlaceBet(ctx context.Context, marketID int64, user string, outcome domain.Outcome, amount float64) (BetReceipt, error) {
	if amount <= 0 {
		return BetReceipt{}, domain.ErrInvalidAmount
	}
	if !outcome.Valid() {
		return BetReceipt{}, fmt.Errorf("%w: unknown outcome %q", domain.ErrValidation, outcome)
	}
	if user == "" {
		return BetReceipt{}, fmt.Errorf("%w: user is required", domain.ErrValidation)
	}

	lk, ok := l.marketLock(marketID)
	if !ok {
		return BetReceipt{}, domain.ErrNotFound
	}
	lk.Lock()
	defer lk.Unlock()

	now := l.now().UTC()

	l.mu.Lock()
	m := l.markets[marketID]

	if m.Status != domain.MarketStatusActive {
		l.mu.Unlock()
		return BetReceipt{}, domain.ErrInvalidState
	}
	if !now.Before(m.EndTime) {
		l.mu.Unlock()
		return BetReceipt{}, domain.ErrMarketExpired
	}

	bal := l.balanceLocked(user)
	if bal < amount {
		l.mu.Unlock()
		return BetReceipt{}, domain.ErrInsufficientBalance
	}

	key := posKey{marketID, user}
	pos, exists := l.positions[key]
	if !exists {
		pos = domain.Position{MarketID: marketID, User: user}
	}

	switch outcome {
	case domain.OutcomeYes:
		m.YesPool += amount
		m.TotalYesShares += amount
		pos.YesAmount += amount
		pos.YesShares += amount
	case domain.OutcomeNo:
		m.NoPool += amount
		m.TotalNoShares += amount
		pos.NoAmount += amount
		pos.NoShares += amount
	}

	bal -= amount
	l.markets[marketID] = m
	l.positions[key] = pos
	l.balances[user] = bal
	l.mu.Unlock()

	l.persistMarket(ctx, m)
	l.persistPosition(ctx, pos)
	l.persistBalance(ctx, user, bal)

	l.logger.InfoContext(ctx, "bet placed",
		slog.Int64("market_id", marketID),
		slog.String("user", user),
		slog.String("outcome", string(outcome)),
		slog.Float64("amount", amount),
	)
	return BetReceipt{Position: pos, Market: m, Balance: bal}, nil
}

// LockMarket closes the betting window: Active -> Locked.
func (l *Ledger) LockMarket(ctx context.Context, marketID int64) (domain.Market, error) {
	return l.transition(ctx, marketID, func(m *domain.Market) error {
		if m.Status != domain.MarketStatusActive {
			return domain.ErrInvalidState
		}
		m.Status = domain.MarketStatusLocked
		return nil
	})
}

// ResolveMarket finalizes the market with the winning outcome:
// Active|Locked -> Resolved. Caller authorization is the API layer's concern.
func (l *Ledger) ResolveMarket(ctx context.Context, marketID int64, outcome domain.Outcome) (domain.Market, error) {
	if !outcome.Valid() {
		return domain.Market{}, fmt.Errorf("%w: unknown outcome %q", domain.ErrValidation, outcome)
	}
	m, err := l.transition(ctx, marketID, func(m *domain.Market) error {
		if m.Status.Terminal() {
			return domain.ErrInvalidState
		}
		out := outcome
		m.Status = domain.MarketStatusResolved
		m.WinningOutcome = &out
		return nil
	})
	if err != nil {
		return domain.Market{}, err
	}

	l.logger.InfoContext(ctx, "market resolved",
		slog.Int64("market_id", marketID),
		slog.String("winning_outcome", string(outcome)),
	)
	return m, nil
}

// CancelMarket voids the market: Active|Locked -> Cancelled. Every position
// is refunded its total contributed amount and marked claimed so nothing can
// be refunded twice.
func (l *Ledger) CancelMarket(ctx context.Context, marketID int64) (domain.Market, error) {
	lk, ok := l.marketLock(marketID)
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	m := l.markets[marketID]
	if m.Status.Terminal() {
		l.mu.Unlock()
		return domain.Market{}, domain.ErrInvalidState
	}
	m.Status = domain.MarketStatusCancelled
	l.markets[marketID] = m

	var refunded []domain.Position
	for key, pos := range l.positions {
		if key.marketID != marketID || pos.Claimed {
			continue
		}
		l.balances[pos.User] = l.balanceLocked(pos.User) + pos.TotalAmount()
		pos.Claimed = true
		l.positions[key] = pos
		refunded = append(refunded, pos)
	}
	balances := make(map[string]float64, len(refunded))
	for _, pos := range refunded {
		balances[pos.User] = l.balances[pos.User]
	}
	l.mu.Unlock()

	l.persistMarket(ctx, m)
	for _, pos := range refunded {
		l.persistPosition(ctx, pos)
		l.persistBalance(ctx, pos.User, balances[pos.User])
	}

	l.logger.InfoContext(ctx, "market cancelled",
		slog.Int64("market_id", marketID),
		slog.Int("positions_refunded", len(refunded)),
	)
	return m, nil
}

// Claim settles the caller's position on a resolved market. The payout is
// computed by compute inside the critical section, the position is marked
// claimed, and the balance credited -- at most once per (market, user).
func (l *Ledger) Claim(ctx context.Context, marketID int64, user string, compute PayoutFunc) (float64, error) {
	lk, ok := l.marketLock(marketID)
	if !ok {
		return 0, domain.ErrNotFound
	}
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	m := l.markets[marketID]
	if m.Status != domain.MarketStatusResolved {
		l.mu.Unlock()
		return 0, domain.ErrNotResolved
	}

	key := posKey{marketID, user}
	pos, exists := l.positions[key]
	if !exists {
		l.mu.Unlock()
		return 0, domain.ErrNothingToClaim
	}
	if pos.Claimed {
		l.mu.Unlock()
		return 0, domain.ErrAlreadyClaimed
	}

	payout := compute(m, pos)
	pos.Claimed = true
	l.positions[key] = pos
	bal := l.balanceLocked(user) + payout
	l.balances[user] = bal
	l.mu.Unlock()

	l.persistPosition(ctx, pos)
	l.persistBalance(ctx, user, bal)

	l.logger.InfoContext(ctx, "winnings claimed",
		slog.Int64("market_id", marketID),
		slog.String("user", user),
		slog.Float64("payout", payout),
	)
	return payout, nil
}

// LockExpired locks every Active market whose end time is at or before now.
// It returns the IDs of the markets it locked.
func (l *Ledger) LockExpired(ctx context.Context, now time.Time) []int64 {
	l.mu.RLock()
	var expired []int64
	for id, m := range l.markets {
		if m.Status == domain.MarketStatusActive && !now.Before(m.EndTime) {
			expired = append(expired, id)
		}
	}
	l.mu.RUnlock()

	var locked []int64
	for _, id := range expired {
		// A concurrent resolve/cancel may win the race; that is fine.
		if _, err := l.LockMarket(ctx, id); err == nil {
			locked = append(locked, id)
		}
	}
	return locked
}

// GetMarket returns a snapshot copy of the market.
func (l *Ledger) GetMarket(marketID int64) (domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

// ListMarkets returns snapshot copies of all markets in unspecified order.
func (l *Ledger) ListMarkets() []domain.Market {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Market, 0, len(l.markets))
	for _, m := range l.markets {
		out = append(out, m)
	}
	return out
}

// GetPosition returns the caller's position in a market.
func (l *Ledger) GetPosition(marketID int64, user string) (domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[posKey{marketID, user}]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

// ListPositions returns all of the user's positions.
func (l *Ledger) ListPositions(user string) []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0)
	for key, pos := range l.positions {
		if key.user == user {
			out = append(out, pos)
		}
	}
	return out
}

// ListClaimedPositions returns every claimed position across all markets.
// Used by the settlement archiver.
func (l *Ledger) ListClaimedPositions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0)
	for _, pos := range l.positions {
		if pos.Claimed {
			out = append(out, pos)
		}
	}
	return out
}

// Balance returns the user's current balance, seeding the starting balance
// on first sight.
func (l *Ledger) Balance(user string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(user)
}

// balanceLocked reads (and lazily seeds) a user balance. Callers must hold
// l.mu for writing.
func (l *Ledger) balanceLocked(user string) float64 {
	bal, ok := l.balances[user]
	if !ok {
		bal = l.startingBalance
		l.balances[user] = bal
	}
	return bal
}

// marketLock returns the per-market mutex, or false when the market does
// not exist.
func (l *Ledger) marketLock(marketID int64) (*sync.Mutex, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lk, ok := l.locks[marketID]
	return lk, ok
}

// transition applies fn to the market under its per-market lock and writes
// the result back. fn mutates the market in place or returns an error to
// abort with no observable change.
func (l *Ledger) transition(ctx context.Context, marketID int64, fn func(*domain.Market) error) (domain.Market, error) {
	lk, ok := l.marketLock(marketID)
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	m := l.markets[marketID]
	if err := fn(&m); err != nil {
		l.mu.Unlock()
		return domain.Market{}, err
	}
	l.markets[marketID] = m
	l.mu.Unlock()

	l.persistMarket(ctx, m)
	return m, nil
}

func (l *Ledger) persistMarket(ctx context.Context, m domain.Market) {
	if l.store == nil {
		return
	}
	if err := l.store.UpsertMarket(ctx, m); err != nil {
		l.logger.WarnContext(ctx, "market mirror write failed",
			slog.Int64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Ledger) persistPosition(ctx context.Context, p domain.Position) {
	if l.store == nil {
		return
	}
	if err := l.store.UpsertPosition(ctx, p); err != nil {
		l.logger.WarnContext(ctx, "position mirror write failed",
			slog.Int64("market_id", p.MarketID),
			slog.String("user", p.User),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Ledger) persistBalance(ctx context.Context, user string, bal float64) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveBalance(ctx, user, bal); err != nil {
		l.logger.WarnContext(ctx, "balance mirror write failed",
			slog.String("user", user),
			slog.String("error", err.Error()),
		)
	}
}
