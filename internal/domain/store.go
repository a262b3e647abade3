package domain

import "context"

// LedgerStore is the durable mirror of ledger state. The ledger hydrates
// from it at startup and writes through after every mutation; store errors
// degrade to log warnings and never fail a ledger operation.
type LedgerStore interface {
	LoadMarkets(ctx context.Context) ([]Market, error)
	LoadPositions(ctx context.Context) ([]Position, error)
	LoadBalances(ctx context.Context) (map[string]float64, error)
	UpsertMarket(ctx context.Context, m Market) error
	UpsertPosition(ctx context.Context, p Position) error
	SaveBalance(ctx context.Context, user string, balance float64) error
}

// SyncCache stores per-market reconciliation status so the read side can
// serve it without touching the monitor's internal state.
type SyncCache interface {
	Set(ctx context.Context, rec SyncRecord) error
	Get(ctx context.Context, marketID int64) (SyncRecord, error)
}

// SignalBus is an ephemeral pub/sub fan-out for ledger and reconciliation
// events consumed by the websocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Well-known signal bus channels.
const (
	ChannelMarkets = "markets"
	ChannelBets    = "bets"
	ChannelClaims  = "claims"
	ChannelSync    = "sync"
)
