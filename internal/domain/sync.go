package domain

import "time"

// SyncStatus is the advisory result of comparing local ledger state against
// the on-chain replica. It is informational only and never gates the
// bet/claim hot path.
type SyncStatus string

const (
	SyncStatusChecking SyncStatus = "checking"
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusFailed   SyncStatus = "failed"
)

// SyncRecord is the per-market reconciliation status. It is derived state
// owned by the reconciliation monitor and is never fed back into the ledger.
type SyncRecord struct {
	MarketID      int64      `json:"marketId"`
	Status        SyncStatus `json:"status"`
	LastCheckedAt time.Time  `json:"lastCheckedAt"`
}
