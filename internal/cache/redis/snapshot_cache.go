package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// snapshotKey is where the latest snapshot lives. One engine instance per
// pair writes it; monitor instances may read it.
const snapshotKey = "dexarb:snapshot"

// snapshotTTL bounds how long a snapshot can outlive its writer.
const snapshotTTL = 5 * time.Minute

// SnapshotCache implements domain.SnapshotCache on a shared Redis instance,
// so a monitor process can observe the prices an engine process fetched.
type SnapshotCache struct {
	rdb *redis.Client
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

type storedPrice struct {
	Buy  decimal.Decimal `json:"buy"`
	Sell decimal.Decimal `json:"sell"`
}

type storedSnapshot struct {
	Prices map[string]storedPrice `json:"prices"`
	Taken  time.Time              `json:"taken"`
}

// Put stores the snapshot, replacing any previous one.
func (sc *SnapshotCache) Put(ctx context.Context, snap domain.PriceSnapshot) error {
	stored := storedSnapshot{
		Prices: make(map[string]storedPrice, len(snap.Prices)),
		Taken:  snap.Taken,
	}
	for venue, p := range snap.Prices {
		stored.Prices[venue] = storedPrice{Buy: p.Buy, Sell: p.Sell}
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey, payload, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	return nil
}

// Get returns the stored snapshot, or domain.ErrNotFound when the key does
// not exist or has expired.
func (sc *SnapshotCache) Get(ctx context.Context) (domain.PriceSnapshot, error) {
	payload, err := sc.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PriceSnapshot{}, domain.ErrNotFound
		}
		return domain.PriceSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var stored storedSnapshot
	if err := json.Unmarshal(payload, &stored); err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("redis: unmarshal snapshot: %w", err)
	}

	snap := domain.PriceSnapshot{
		Prices: make(map[string]domain.VenuePrice, len(stored.Prices)),
		Taken:  stored.Taken,
	}
	for venue, p := range stored.Prices {
		snap.Prices[venue] = domain.VenuePrice{Buy: p.Buy, Sell: p.Sell}
	}
	return snap, nil
}
