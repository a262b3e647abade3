package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xuanbach0212/predictum/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// LoadMarkets returns every mirrored market.
func (s *LedgerStore) LoadMarkets(ctx context.Context) ([]domain.Market, error) {
	const query = `
		SELECT id, question, category, status, end_time,
		       yes_pool, no_pool, total_yes_shares, total_no_shares,
		       winning_outcome, created_at
		FROM markets
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		var (
			m        domain.Market
			status   string
			category string
			winning  *string
		)
		if err := rows.Scan(
			&m.ID, &m.Question, &category, &status, &m.EndTime,
			&m.YesPool, &m.NoPool, &m.TotalYesShares, &m.TotalNoShares,
			&winning, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		m.Category = domain.Category(category)
		m.Status = domain.MarketStatus(status)
		if winning != nil {
			o := domain.Outcome(*winning)
			m.WinningOutcome = &o
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return markets, nil
}

// LoadPositions returns every mirrored position.
func (s *LedgerStore) LoadPositions(ctx context.Context) ([]domain.Position, error) {
	const query = `
		SELECT market_id, "user", yes_amount, no_amount,
		       yes_shares, no_shares, claimed
		FROM positions
		ORDER BY market_id, "user"`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(
			&p.MarketID, &p.User, &p.YesAmount, &p.NoAmount,
			&p.YesShares, &p.NoShares, &p.Claimed,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate positions: %w", err)
	}
	return positions, nil
}

// LoadBalances returns every mirrored user balance.
func (s *LedgerStore) LoadBalances(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT "user", balance FROM balances`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]float64)
	for rows.Next() {
		var (
			user    string
			balance float64
		)
		if err := rows.Scan(&user, &balance); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		balances[user] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate balances: %w", err)
	}
	return balances, nil
}

// UpsertMarket inserts or updates a single market.
func (s *LedgerStore) UpsertMarket(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, question, category, status, end_time,
			yes_pool, no_pool, total_yes_shares, total_no_shares,
			winning_outcome, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			question         = EXCLUDED.question,
			category         = EXCLUDED.category,
			status           = EXCLUDED.status,
			end_time         = EXCLUDED.end_time,
			yes_pool         = EXCLUDED.yes_pool,
			no_pool          = EXCLUDED.no_pool,
			total_yes_shares = EXCLUDED.total_yes_shares,
			total_no_shares  = EXCLUDED.total_no_shares,
			winning_outcome  = EXCLUDED.winning_outcome,
			updated_at       = NOW()`

	var winning *string
	if m.WinningOutcome != nil {
		w := string(*m.WinningOutcome)
		winning = &w
	}

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Question, string(m.Category), string(m.Status), m.EndTime,
		m.YesPool, m.NoPool, m.TotalYesShares, m.TotalNoShares,
		winning, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %d: %w", m.ID, err)
	}
	return nil
}

// UpsertPosition inserts or updates a single position.
func (s *LedgerStore) UpsertPosition(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			market_id, "user", yes_amount, no_amount,
			yes_shares, no_shares, claimed, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (market_id, "user") DO UPDATE SET
			yes_amount = EXCLUDED.yes_amount,
			no_amount  = EXCLUDED.no_amount,
			yes_shares = EXCLUDED.yes_shares,
			no_shares  = EXCLUDED.no_shares,
			claimed    = EXCLUDED.claimed,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.MarketID, p.User, p.YesAmount, p.NoAmount,
		p.YesShares, p.NoShares, p.Claimed,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %d/%s: %w", p.MarketID, p.User, err)
	}
	return nil
}

// SaveBalance inserts or updates a user balance.
func (s *LedgerStore) SaveBalance(ctx context.Context, user string, balance float64) error {
	const query = `
		INSERT INTO balances ("user", balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT ("user") DO UPDATE SET
			balance    = EXCLUDED.balance,
			updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, user, balance); err != nil {
		return fmt.Errorf("postgres: save balance %s: %w", user, err)
	}
	return nil
}
