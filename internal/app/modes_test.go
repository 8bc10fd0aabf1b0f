package app

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/config"
	"github.com/alanyoungcy/dexarb/internal/domain"
)

type fakeCycleStore struct {
	cycles    []domain.CycleResult
	err       error
	lastLimit int
}

func (s *fakeCycleStore) Create(context.Context, domain.CycleResult) error {
	return nil
}

func (s *fakeCycleStore) ListRecent(_ context.Context, limit int) ([]domain.CycleResult, error) {
	s.lastLimit = limit
	return s.cycles, s.err
}

func testApp() *App {
	cfg := config.Defaults()
	return New(&cfg, slog.Default())
}

func TestLogRecentCyclesQueriesStore(t *testing.T) {
	store := &fakeCycleStore{
		cycles: []domain.CycleResult{
			{ID: "c1", State: domain.CycleSettled, Profit: decimal.NewFromInt(2), StartedAt: time.Now()},
			{ID: "c2", State: domain.CycleAborted, StartedAt: time.Now()},
		},
	}

	testApp().logRecentCycles(context.Background(), slog.Default(), store)

	if store.lastLimit != recentCycleCount {
		t.Fatalf("ListRecent limit = %d, want %d", store.lastLimit, recentCycleCount)
	}
}

func TestLogRecentCyclesToleratesStoreFailure(t *testing.T) {
	store := &fakeCycleStore{err: errors.New("connection refused")}

	// Must not panic or abort startup; the summary is best effort.
	testApp().logRecentCycles(context.Background(), slog.Default(), store)

	if store.lastLimit != recentCycleCount {
		t.Fatalf("ListRecent limit = %d, want %d", store.lastLimit, recentCycleCount)
	}
}
