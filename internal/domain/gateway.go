package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxRequest is everything needed to sign and broadcast one transaction.
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Nonce    uint64
}

// Receipt is the subset of a transaction receipt the engine acts on.
type Receipt struct {
	TxHash            common.Hash
	Status            uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// Succeeded reports whether the transaction executed without reverting.
func (r Receipt) Succeeded() bool {
	return r.Status == 1
}

// Fee returns the total wei spent on gas for this transaction.
func (r Receipt) Fee() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), r.EffectiveGasPrice)
}

// Gateway is the engine's capability surface over the remote chain node.
type Gateway interface {
	// Quote returns the router's output amounts for swapping amountIn along
	// path. The last element corresponds to the final output token.
	Quote(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error)

	// BalanceOf returns the wallet's raw balance of an ERC-20 token.
	BalanceOf(ctx context.Context, token, wallet common.Address) (*big.Int, error)

	// NativeBalance returns the wallet's native coin balance in wei.
	NativeBalance(ctx context.Context, wallet common.Address) (*big.Int, error)

	// GasPrice returns the node's suggested gas price in wei.
	GasPrice(ctx context.Context) (*big.Int, error)

	// Allowance returns the spender's remaining allowance over the wallet's
	// tokens.
	Allowance(ctx context.Context, token, wallet, spender common.Address) (*big.Int, error)

	// Simulate dry-runs the call without broadcasting. A revert is reported
	// as an error wrapping ErrSimulationRevert.
	Simulate(ctx context.Context, from common.Address, req TxRequest) error

	// SignAndSubmit signs the request with the wallet key and broadcasts it.
	SignAndSubmit(ctx context.Context, req TxRequest) (common.Hash, error)

	// AwaitReceipt polls until the transaction is mined or ctx expires; on
	// timeout it returns an error wrapping ErrReceiptTimeout.
	AwaitReceipt(ctx context.Context, txHash common.Hash) (Receipt, error)

	// TransactionCount returns the wallet's pending nonce.
	TransactionCount(ctx context.Context, wallet common.Address) (uint64, error)
}
