package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Quoter is the slice of the gateway the route optimizer needs.
type Quoter interface {
	Quote(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
}

// RouteOptimizer picks the swap path with the highest quoted output for one
// leg: the direct pair, or a one-hop detour through the bridge token.
type RouteOptimizer struct {
	logger      *slog.Logger
	quoter      Quoter
	bridge      *domain.Token
	slippageBps int64
}

// NewRouteOptimizer builds a RouteOptimizer. bridge may be nil; slippagePct
// is a percentage (1.0 means 1%).
func NewRouteOptimizer(quoter Quoter, bridge *domain.Token, slippagePct float64, logger *slog.Logger) *RouteOptimizer {
	return &RouteOptimizer{
		logger:      logger.With(slog.String("component", "route_optimizer")),
		quoter:      quoter,
		bridge:      bridge,
		// Round: 0.35% must become 35 bps, not the truncated 34.
		slippageBps: int64(math.Round(slippagePct * 100)),
	}
}

// Best quotes every candidate path on the venue and returns the route with
// the strictly highest output; the direct path wins ties. It returns
// domain.ErrNoRoute when no candidate quotes to a positive output.
func (r *RouteOptimizer) Best(ctx context.Context, venue string, router common.Address, from, to domain.Token, amountIn *big.Int) (domain.Route, error) {
	candidates := [][]common.Address{{from.Address, to.Address}}
	if r.bridge != nil && r.bridge.Address != from.Address && r.bridge.Address != to.Address {
		candidates = append(candidates, []common.Address{from.Address, r.bridge.Address, to.Address})
	}

	var best domain.Route
	for _, path := range candidates {
		amounts, err := r.quoter.Quote(ctx, router, amountIn, path)
		if err != nil {
			r.logger.Debug("route quote failed",
				slog.String("venue", venue),
				slog.Int("hops", len(path)-1),
				slog.String("error", err.Error()))
			continue
		}
		if len(amounts) == 0 {
			continue
		}
		out := amounts[len(amounts)-1]
		if out.Sign() <= 0 {
			continue
		}
		if best.ExpectedOut == nil || out.Cmp(best.ExpectedOut) > 0 {
			best = domain.Route{
				Venue:       venue,
				Path:        path,
				AmountIn:    amountIn,
				ExpectedOut: out,
			}
		}
	}

	if best.ExpectedOut == nil {
		return domain.Route{}, fmt.Errorf("arbitrage: %s %s->%s: %w", venue, from.Symbol, to.Symbol, domain.ErrNoRoute)
	}
	best.MinOut = minOut(best.ExpectedOut, r.slippageBps)

	r.logger.Debug("route selected",
		slog.String("venue", venue),
		slog.Int("hops", len(best.Path)-1),
		slog.String("expected_out", best.ExpectedOut.String()),
		slog.String("min_out", best.MinOut.String()))
	return best, nil
}

// minOut applies the slippage tolerance as a floor: out*(10000-bps)/10000 in
// integer arithmetic, so the bound never rounds up.
func minOut(out *big.Int, slippageBps int64) *big.Int {
	keep := big.NewInt(10_000 - slippageBps)
	v := new(big.Int).Mul(out, keep)
	return v.Div(v, big.NewInt(10_000))
}
