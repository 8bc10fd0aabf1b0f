package arbitrage

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

var (
	tokQuote  = domain.Token{Symbol: "USDT", Address: common.HexToAddress("0x01"), Decimals: 18}
	tokBase   = domain.Token{Symbol: "WBNB", Address: common.HexToAddress("0x02"), Decimals: 18}
	tokBridge = domain.Token{Symbol: "BUSD", Address: common.HexToAddress("0x03"), Decimals: 18}

	testRouter = common.HexToAddress("0xaa")
)

// pathQuoter returns a fixed final output per path length.
type pathQuoter struct {
	direct *big.Int // nil means the direct quote errors
	bridge *big.Int // nil means the bridge quote errors
	calls  int
}

func (q *pathQuoter) Quote(_ context.Context, _ common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	q.calls++
	var out *big.Int
	if len(path) == 2 {
		out = q.direct
	} else {
		out = q.bridge
	}
	if out == nil {
		return nil, errors.New("execution reverted")
	}
	amounts := make([]*big.Int, len(path))
	for i := range amounts {
		amounts[i] = new(big.Int)
	}
	amounts[0] = amountIn
	amounts[len(amounts)-1] = out
	return amounts, nil
}

func TestRouteBestPrefersHigherOutput(t *testing.T) {
	q := &pathQuoter{direct: big.NewInt(1000), bridge: big.NewInt(1500)}
	r := NewRouteOptimizer(q, &tokBridge, 1.0, testLogger())

	route, err := r.Best(context.Background(), "venue_x", testRouter, tokQuote, tokBase, big.NewInt(10))
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if len(route.Path) != 3 {
		t.Fatalf("path length = %d, want 3 (bridge route)", len(route.Path))
	}
	if route.ExpectedOut.Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("expected out = %s, want 1500", route.ExpectedOut)
	}
}

func TestRouteBestTieGoesToDirect(t *testing.T) {
	q := &pathQuoter{direct: big.NewInt(1000), bridge: big.NewInt(1000)}
	r := NewRouteOptimizer(q, &tokBridge, 1.0, testLogger())

	route, err := r.Best(context.Background(), "venue_x", testRouter, tokQuote, tokBase, big.NewInt(10))
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if !route.Direct() {
		t.Fatalf("tie selected the bridge path, want direct")
	}
}

func TestRouteBestFallsBackToBridge(t *testing.T) {
	q := &pathQuoter{direct: nil, bridge: big.NewInt(900)}
	r := NewRouteOptimizer(q, &tokBridge, 1.0, testLogger())

	route, err := r.Best(context.Background(), "venue_x", testRouter, tokQuote, tokBase, big.NewInt(10))
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if route.Direct() {
		t.Fatalf("got direct path, want bridge")
	}
}

func TestRouteBestNoRoute(t *testing.T) {
	q := &pathQuoter{}
	r := NewRouteOptimizer(q, &tokBridge, 1.0, testLogger())

	if _, err := r.Best(context.Background(), "venue_x", testRouter, tokQuote, tokBase, big.NewInt(10)); !errors.Is(err, domain.ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute", err)
	}
	if q.calls != 2 {
		t.Fatalf("calls = %d, want 2 (direct and bridge both tried)", q.calls)
	}
}

func TestRouteBestNoBridgeConfigured(t *testing.T) {
	q := &pathQuoter{direct: big.NewInt(1000), bridge: big.NewInt(9999)}
	r := NewRouteOptimizer(q, nil, 1.0, testLogger())

	route, err := r.Best(context.Background(), "venue_x", testRouter, tokQuote, tokBase, big.NewInt(10))
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if !route.Direct() {
		t.Fatalf("got bridge path with no bridge configured")
	}
	if q.calls != 1 {
		t.Fatalf("calls = %d, want 1", q.calls)
	}
}

func TestRouteBestFractionalSlippagePct(t *testing.T) {
	// Percentages that are not exactly representable as floats must still
	// convert to whole basis points: 0.35% is 35 bps, and min out is
	// 10000 * (10000-35) / 10000.
	tests := []struct {
		pct     float64
		wantMin int64
	}{
		{0.35, 9_965},
		{0.29, 9_971},
		{1.0, 9_900},
	}
	for _, tt := range tests {
		q := &pathQuoter{direct: big.NewInt(10_000)}
		r := NewRouteOptimizer(q, nil, tt.pct, testLogger())

		route, err := r.Best(context.Background(), "venue_x", testRouter, tokQuote, tokBase, big.NewInt(10))
		if err != nil {
			t.Fatalf("Best(%g%%): %v", tt.pct, err)
		}
		if route.MinOut.Cmp(big.NewInt(tt.wantMin)) != 0 {
			t.Fatalf("min out at %g%% = %s, want %d", tt.pct, route.MinOut, tt.wantMin)
		}
	}
}

func TestMinOutFloors(t *testing.T) {
	tests := []struct {
		name string
		out  int64
		bps  int64
		want int64
	}{
		{"one_percent", 10_000, 100, 9_900},
		{"rounds_down", 999, 100, 989},  // 999*9900/10000 = 989.01
		{"zero_slippage", 1234, 0, 1234},
		{"tiny_output", 1, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := minOut(big.NewInt(tt.out), tt.bps)
			if got.Cmp(big.NewInt(tt.want)) != 0 {
				t.Fatalf("minOut(%d, %d) = %s, want %d", tt.out, tt.bps, got, tt.want)
			}
		})
	}
}

func TestMinOutNeverExceedsOutput(t *testing.T) {
	for _, out := range []int64{1, 7, 99, 10_001, 1_000_000_007} {
		got := minOut(big.NewInt(out), 100)
		if got.Cmp(big.NewInt(out)) > 0 {
			t.Fatalf("minOut(%d) = %s exceeds the quoted output", out, got)
		}
	}
}
