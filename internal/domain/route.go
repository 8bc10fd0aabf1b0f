package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Route is a swap path chosen for one leg, with its quoted output and the
// slippage-floored minimum acceptable output.
type Route struct {
	Venue       string
	Path        []common.Address
	AmountIn    *big.Int
	ExpectedOut *big.Int
	MinOut      *big.Int
}

// Direct reports whether the route is a single-hop path.
func (r Route) Direct() bool {
	return len(r.Path) == 2
}
