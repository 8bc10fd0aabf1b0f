// Package arbitrage holds opportunity detection, route selection, and the
// two-leg cycle executor.
package arbitrage

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Detector finds the best ordered venue pair in a price snapshot.
type Detector struct {
	logger    *slog.Logger
	threshold decimal.Decimal
}

// NewDetector builds a Detector. threshold is the minimum spread, in quote
// units per base token, for an opportunity to be actionable.
func NewDetector(threshold decimal.Decimal, logger *slog.Logger) *Detector {
	return &Detector{
		logger:    logger.With(slog.String("component", "detector")),
		threshold: threshold,
	}
}

// FindBest scans every ordered (buy, sell) venue pair and returns the one
// with the largest spread at or above the threshold. Venues are visited in
// sorted name order and replacement is strictly greater, so ties resolve to
// the lexicographically first pair. It returns domain.ErrNoOpportunity when
// no pair clears the threshold.
func (d *Detector) FindBest(snap domain.PriceSnapshot) (domain.Opportunity, error) {
	venues := snap.Venues()
	if len(venues) < 2 {
		return domain.Opportunity{}, fmt.Errorf("arbitrage: %d venue(s) priced: %w", len(venues), domain.ErrNoOpportunity)
	}

	var best domain.Opportunity
	found := false
	for _, buyVenue := range venues {
		buy := snap.Prices[buyVenue].Buy
		if buy.IsZero() {
			continue
		}
		for _, sellVenue := range venues {
			if sellVenue == buyVenue {
				continue
			}
			sell := snap.Prices[sellVenue].Sell
			if sell.IsZero() {
				continue
			}
			spread := sell.Sub(buy)
			if !found || spread.GreaterThan(best.Spread) {
				best = domain.Opportunity{
					BuyVenue:  buyVenue,
					SellVenue: sellVenue,
					BuyPrice:  buy,
					SellPrice: sell,
					Spread:    spread,
				}
				found = true
			}
		}
	}

	if !found || best.Spread.LessThan(d.threshold) {
		return domain.Opportunity{}, domain.ErrNoOpportunity
	}

	d.logger.Debug("opportunity",
		slog.String("buy_venue", best.BuyVenue),
		slog.String("sell_venue", best.SellVenue),
		slog.String("spread", best.Spread.String()))
	return best, nil
}
