package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xuanbach0212/predictum/internal/domain"
)

const syncTTL = 10 * time.Minute

// SyncCache implements domain.SyncCache using Redis string keys with
// JSON-serialized sync records.
//
// Key schema:
//
//	sync:{marketID} - JSON-encoded domain.SyncRecord
type SyncCache struct {
	rdb *redis.Client
}

// NewSyncCache creates a SyncCache backed by the given Client.
func NewSyncCache(c *Client) *SyncCache {
	return &SyncCache{rdb: c.Underlying()}
}

func syncKey(marketID int64) string {
	return "sync:" + strconv.FormatInt(marketID, 10)
}

// Set stores a sync record with a 10-minute TTL. Records self-expire so a
// stopped watcher does not leave a stale status behind forever.
func (sc *SyncCache) Set(ctx context.Context, rec domain.SyncRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: marshal sync record %d: %w", rec.MarketID, err)
	}
	if err := sc.rdb.Set(ctx, syncKey(rec.MarketID), data, syncTTL).Err(); err != nil {
		return fmt.Errorf("redis: set sync record %d: %w", rec.MarketID, err)
	}
	return nil
}

// Get retrieves the sync record for a market.
// It returns domain.ErrNotFound when no record exists.
func (sc *SyncCache) Get(ctx context.Context, marketID int64) (domain.SyncRecord, error) {
	data, err := sc.rdb.Get(ctx, syncKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SyncRecord{}, domain.ErrNotFound
		}
		return domain.SyncRecord{}, fmt.Errorf("redis: get sync record %d: %w", marketID, err)
	}

	var rec domain.SyncRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.SyncRecord{}, fmt.Errorf("redis: unmarshal sync record %d: %w", marketID, err)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.SyncCache = (*SyncCache)(nil)
