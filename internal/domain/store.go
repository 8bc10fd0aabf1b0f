package domain

import "context"

// CycleStore persists executed cycle results.
type CycleStore interface {
	Create(ctx context.Context, result CycleResult) error
	ListRecent(ctx context.Context, limit int) ([]CycleResult, error)
}
