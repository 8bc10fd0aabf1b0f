package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// VenuePrice holds a venue's effective prices for the trading pair, both
// expressed in quote-token units per one base token. Buy is the cost of
// acquiring one base token; Sell is the proceeds of selling one. A zero
// value on either side means the quote for that direction was unavailable.
type VenuePrice struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

// PriceSnapshot is a point-in-time view of all venue prices.
type PriceSnapshot struct {
	Prices map[string]VenuePrice
	Taken  time.Time
}

// Venues returns venue names in deterministic sorted order.
func (s PriceSnapshot) Venues() []string {
	names := make([]string, 0, len(s.Prices))
	for name := range s.Prices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Age reports how long ago the snapshot was taken.
func (s PriceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Taken)
}

// Opportunity is a profitable ordered venue pair: buy base on BuyVenue, sell
// it on SellVenue. Spread is SellPrice minus BuyPrice in quote units.
type Opportunity struct {
	BuyVenue  string
	SellVenue string
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	Spread    decimal.Decimal
}
