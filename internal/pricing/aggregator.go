// Package pricing aggregates venue prices for the trading pair into
// point-in-time snapshots.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Quoter is the slice of the gateway the aggregator needs.
type Quoter interface {
	Quote(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
}

// Config holds the aggregator's tuning knobs.
type Config struct {
	FreshnessWindow time.Duration
	QuoteTimeout    time.Duration
	Workers         int
}

// Aggregator fans quote requests out to every venue concurrently and reduces
// them into a PriceSnapshot. Refreshes inside the freshness window are served
// from the cache, so bursts of callers produce a single round of RPC traffic.
type Aggregator struct {
	logger *slog.Logger
	quoter Quoter
	cache  domain.SnapshotCache

	base   domain.Token
	quote  domain.Token
	bridge *domain.Token
	venues []domain.Venue

	cfg Config

	// Serializes refreshes; concurrent callers wait and then hit the cache.
	mu sync.Mutex
}

// NewAggregator builds an Aggregator. bridge may be nil when no intermediate
// hop token is configured.
func NewAggregator(quoter Quoter, cache domain.SnapshotCache, base, quote domain.Token, bridge *domain.Token, venues []domain.Venue, cfg Config, logger *slog.Logger) *Aggregator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Aggregator{
		logger: logger.With(slog.String("component", "aggregator")),
		quoter: quoter,
		cache:  cache,
		base:   base,
		quote:  quote,
		bridge: bridge,
		venues: venues,
		cfg:    cfg,
	}
}

// Refresh returns a snapshot no older than the freshness window, fetching
// fresh quotes only when the cached one has expired. When every venue fails
// it falls back to the last cached snapshot; with no cache to fall back on it
// returns domain.ErrNoPrices.
func (a *Aggregator) Refresh(ctx context.Context) (domain.PriceSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cached, cacheErr := a.cache.Get(ctx)
	if cacheErr == nil && cached.Age(time.Now()) <= a.cfg.FreshnessWindow {
		return cached, nil
	}

	snap, err := a.fetch(ctx)
	if err != nil {
		if cacheErr == nil {
			a.logger.Warn("refresh failed, serving stale snapshot",
				slog.String("error", err.Error()),
				slog.Duration("age", cached.Age(time.Now())))
			return cached, nil
		}
		return domain.PriceSnapshot{}, err
	}

	if putErr := a.cache.Put(ctx, snap); putErr != nil {
		a.logger.Warn("snapshot cache write failed", slog.String("error", putErr.Error()))
	}
	return snap, nil
}

// venueQuote is one completed quoting task.
type venueQuote struct {
	venue string
	price domain.VenuePrice
	ok    bool
}

// fetch performs one full quoting round across all venues.
func (a *Aggregator) fetch(ctx context.Context) (domain.PriceSnapshot, error) {
	results := make([]venueQuote, len(a.venues))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, venue := range a.venues {
		g.Go(func() error {
			price, ok := a.quoteVenue(gctx, venue)
			results[i] = venueQuote{venue: venue.Name, price: price, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.PriceSnapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.PriceSnapshot{}, err
	}

	prices := make(map[string]domain.VenuePrice, len(results))
	for _, r := range results {
		if r.ok {
			prices[r.venue] = r.price
		}
	}
	if len(prices) == 0 {
		return domain.PriceSnapshot{}, domain.ErrNoPrices
	}
	return domain.PriceSnapshot{Prices: prices, Taken: time.Now()}, nil
}

// quoteVenue fetches both directions for one venue. A direction that fails
// on every path is left at zero; ok is false only when both directions fail.
func (a *Aggregator) quoteVenue(ctx context.Context, venue domain.Venue) (domain.VenuePrice, bool) {
	var price domain.VenuePrice

	// Sell side: proceeds of swapping one base token into quote tokens.
	sellOut := a.bestOut(ctx, venue, a.base.Unit(), a.paths(a.base, a.quote))
	if sellOut != nil && sellOut.Sign() > 0 {
		price.Sell = a.quote.FromRaw(sellOut)
	}

	// Buy side: base tokens received for one quote token; the buy price is
	// the reciprocal, in quote per base.
	buyOut := a.bestOut(ctx, venue, a.quote.Unit(), a.paths(a.quote, a.base))
	if buyOut != nil && buyOut.Sign() > 0 {
		received := a.base.FromRaw(buyOut)
		if received.IsPositive() {
			price.Buy = decimal.NewFromInt(1).Div(received)
		}
	}

	ok := !price.Buy.IsZero() || !price.Sell.IsZero()
	if !ok {
		a.logger.Warn("venue produced no quotes", slog.String("venue", venue.Name))
	}
	return price, ok
}

// paths returns the candidate swap paths from one token to another: the
// direct pair, plus the one-hop bridge when configured.
func (a *Aggregator) paths(from, to domain.Token) [][]common.Address {
	candidates := [][]common.Address{{from.Address, to.Address}}
	if a.bridge != nil && a.bridge.Address != from.Address && a.bridge.Address != to.Address {
		candidates = append(candidates, []common.Address{from.Address, a.bridge.Address, to.Address})
	}
	return candidates
}

// bestOut quotes every candidate path and returns the largest final output,
// or nil when no path quoted successfully.
func (a *Aggregator) bestOut(ctx context.Context, venue domain.Venue, amountIn *big.Int, candidates [][]common.Address) *big.Int {
	var best *big.Int
	for _, path := range candidates {
		qctx, cancel := context.WithTimeout(ctx, a.cfg.QuoteTimeout)
		amounts, err := a.quoter.Quote(qctx, venue.Router, amountIn, path)
		cancel()
		if err != nil {
			a.logger.Debug("quote failed",
				slog.String("venue", venue.Name),
				slog.Int("hops", len(path)-1),
				slog.String("error", err.Error()))
			continue
		}
		if len(amounts) == 0 {
			continue
		}
		out := amounts[len(amounts)-1]
		if best == nil || out.Cmp(best) > 0 {
			best = out
		}
	}
	return best
}

// Describe returns a short label for logging, e.g. "WBNB/USDT".
func (a *Aggregator) Describe() string {
	return fmt.Sprintf("%s/%s", a.base.Symbol, a.quote.Symbol)
}
