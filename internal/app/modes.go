package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// MonitorMode periodically refreshes venue prices and logs a per-venue
// buy/sell/spread table plus the best opportunity, without ever trading.
// It runs until ctx is cancelled or the configured round budget is spent.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	logger := a.logger.With(slog.String("mode", "monitor"))
	logger.Info("monitor started",
		slog.Duration("interval", a.cfg.Pricing.RefreshInterval.Duration))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Pricing.RefreshInterval.Duration)
		defer ticker.Stop()

		for round := 1; ; round++ {
			snap, err := deps.Aggregator.Refresh(ctx)
			if err != nil {
				logger.Error("refresh failed", slog.String("error", err.Error()))
			} else {
				a.logRound(ctx, logger, deps, snap, round)
			}

			if a.cfg.Arbitrage.MaxRounds > 0 && round >= a.cfg.Arbitrage.MaxRounds {
				logger.Info("round budget spent", slog.Int("rounds", round))
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	return ignoreCancel(g.Wait())
}

// logRound emits one monitoring round: a row per venue and the best spread.
func (a *App) logRound(ctx context.Context, logger *slog.Logger, deps *Dependencies, snap domain.PriceSnapshot, round int) {
	for _, venue := range snap.Venues() {
		p := snap.Prices[venue]
		logger.Info("venue prices",
			slog.Int("round", round),
			slog.String("venue", venue),
			slog.String("buy", p.Buy.String()),
			slog.String("sell", p.Sell.String()))
	}

	opp, err := deps.Detector.FindBest(snap)
	if err != nil {
		logger.Debug("no opportunity", slog.Int("round", round))
		return
	}
	logger.Info("best opportunity",
		slog.Int("round", round),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
		slog.String("spread", opp.Spread.String()))
	if err := deps.Notifier.Notify(ctx, "opportunity", "Opportunity detected",
		fmt.Sprintf("buy %s @ %s, sell %s @ %s, spread %s",
			opp.BuyVenue, opp.BuyPrice, opp.SellVenue, opp.SellPrice, opp.Spread)); err != nil {
		logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

// ArbitrageMode runs detect-and-execute rounds on the refresh cadence until
// ctx is cancelled or the round budget is spent. A round that finds nothing
// actionable is quiet; every other outcome is logged.
func (a *App) ArbitrageMode(ctx context.Context, deps *Dependencies) error {
	logger := a.logger.With(slog.String("mode", "arbitrage"))
	logger.Info("arbitrage started",
		slog.String("wallet", deps.Gateway.Wallet().Hex()),
		slog.Duration("interval", a.cfg.Pricing.RefreshInterval.Duration),
		slog.Int("max_rounds", a.cfg.Arbitrage.MaxRounds))
	if deps.CycleStore != nil {
		a.logRecentCycles(ctx, logger, deps.CycleStore)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Pricing.RefreshInterval.Duration)
		defer ticker.Stop()

		for round := 1; ; round++ {
			res, err := deps.Executor.Execute(ctx)
			switch {
			case err == nil:
				logger.Info("cycle settled",
					slog.Int("round", round),
					slog.String("cycle_id", res.ID),
					slog.String("profit", res.Profit.String()),
					slog.Bool("profitable", res.Profitable()))
			case errors.Is(err, domain.ErrNoOpportunity):
				logger.Debug("no opportunity", slog.Int("round", round))
			case errors.Is(err, context.Canceled):
				return ctx.Err()
			default:
				logger.Error("cycle failed",
					slog.Int("round", round),
					slog.String("cycle_id", res.ID),
					slog.String("error", err.Error()))
			}

			if a.cfg.Arbitrage.MaxRounds > 0 && round >= a.cfg.Arbitrage.MaxRounds {
				logger.Info("round budget spent", slog.Int("rounds", round))
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	return ignoreCancel(g.Wait())
}

// recentCycleCount is how many stored cycles the startup summary covers.
const recentCycleCount = 5

// logRecentCycles emits a short history summary so an operator restarting the
// engine sees how the previous session ended. Store failures only cost the
// summary, never the run.
func (a *App) logRecentCycles(ctx context.Context, logger *slog.Logger, store domain.CycleStore) {
	cycles, err := store.ListRecent(ctx, recentCycleCount)
	if err != nil {
		logger.Warn("cycle history unavailable", slog.String("error", err.Error()))
		return
	}
	if len(cycles) == 0 {
		logger.Info("no prior cycles on record")
		return
	}
	for _, c := range cycles {
		logger.Info("prior cycle",
			slog.String("cycle_id", c.ID),
			slog.String("state", string(c.State)),
			slog.String("profit", c.Profit.String()),
			slog.Time("started_at", c.StartedAt))
	}
}

// ignoreCancel maps context cancellation to a clean shutdown.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
