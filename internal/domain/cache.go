package domain

import "context"

// SnapshotCache stores the latest price snapshot so refreshes within the
// freshness window can be served without touching the chain.
type SnapshotCache interface {
	Put(ctx context.Context, snap PriceSnapshot) error
	Get(ctx context.Context) (PriceSnapshot, error)
}
