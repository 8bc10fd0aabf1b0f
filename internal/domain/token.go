package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token describes an ERC-20 token on the target chain.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Unit returns 10^decimals, the raw amount of one whole token.
func (t Token) Unit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)), nil)
}

// ToRaw converts a human-readable amount to the token's raw integer units,
// truncating any fraction below one raw unit.
func (t Token) ToRaw(amount decimal.Decimal) *big.Int {
	return amount.Shift(int32(t.Decimals)).BigInt()
}

// FromRaw converts raw integer units to a human-readable decimal amount.
func (t Token) FromRaw(raw *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -int32(t.Decimals))
}

// Venue is a swap venue identified by its router contract.
type Venue struct {
	Name   string
	Router common.Address
}
