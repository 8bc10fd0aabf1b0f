package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// CycleState tracks progress of a two-leg arbitrage cycle.
type CycleState string

const (
	CycleIdle                 CycleState = "idle"
	CycleCheckingBalances     CycleState = "checking_balances"
	CycleDetectingOpportunity CycleState = "detecting_opportunity"
	CycleApprovingBuy         CycleState = "approving_buy"
	CycleSubmittingBuy        CycleState = "submitting_buy"
	CycleAwaitingBuyReceipt   CycleState = "awaiting_buy_receipt"
	CycleApprovingSell        CycleState = "approving_sell"
	CycleSubmittingSell       CycleState = "submitting_sell"
	CycleAwaitingSellReceipt  CycleState = "awaiting_sell_receipt"
	CycleSettled              CycleState = "settled"
	CycleAborted              CycleState = "aborted"
)

// CycleResult records the outcome of one execute call, settled or aborted.
type CycleResult struct {
	ID        string
	BuyVenue  string
	SellVenue string
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	Spread    decimal.Decimal

	BuyTxHash  common.Hash
	SellTxHash common.Hash

	InitialQuoteBalance *big.Int
	FinalQuoteBalance   *big.Int
	Profit              decimal.Decimal
	GasFeeWei           *big.Int
	GasFeeQuote         decimal.Decimal

	State       CycleState
	AbortReason string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Profitable reports whether the settled cycle ended with a net gain before
// gas costs.
func (r CycleResult) Profitable() bool {
	return r.State == CycleSettled && r.Profit.IsPositive()
}
