package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// receiptPollInterval is how often AwaitReceipt asks the node for the receipt.
const receiptPollInterval = 2 * time.Second

// Gateway implements domain.Gateway over a failover Client. The signing key
// may be nil for read-only use; SignAndSubmit then fails.
type Gateway struct {
	logger  *slog.Logger
	client  *Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	wallet  common.Address
}

var _ domain.Gateway = (*Gateway)(nil)

// NewGateway builds a Gateway for the given chain. When key is non-nil the
// wallet address is derived from it.
func NewGateway(client *Client, chainID int64, key *ecdsa.PrivateKey, logger *slog.Logger) *Gateway {
	g := &Gateway{
		logger:  logger.With(slog.String("component", "gateway")),
		client:  client,
		chainID: big.NewInt(chainID),
		key:     key,
	}
	if key != nil {
		g.wallet = ethcrypto.PubkeyToAddress(key.PublicKey)
	}
	return g
}

// Wallet returns the address derived from the signing key, or the zero
// address in read-only mode.
func (g *Gateway) Wallet() common.Address {
	return g.wallet
}

// call runs an eth_call against the latest block through the failover client.
func (g *Gateway) call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var raw []byte
	err := g.client.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		raw, callErr = eth.CallContract(ctx, msg, nil)
		return callErr
	})
	return raw, err
}

// Quote returns the router's output amounts for swapping amountIn along path.
func (g *Gateway) Quote(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := QuoteCalldata(amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("chain: encode quote: %w", err)
	}
	raw, err := g.call(ctx, ethereum.CallMsg{To: &router, Data: data})
	if err != nil {
		return nil, fmt.Errorf("chain: quote via %s: %w", router.Hex(), err)
	}
	return UnpackQuote(raw)
}

// BalanceOf returns the wallet's raw ERC-20 balance.
func (g *Gateway) BalanceOf(ctx context.Context, token, wallet common.Address) (*big.Int, error) {
	data, err := balanceOfCalldata(wallet)
	if err != nil {
		return nil, fmt.Errorf("chain: encode balanceOf: %w", err)
	}
	raw, err := g.call(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOf %s: %w", token.Hex(), err)
	}
	return unpackBig(erc20ABI, "balanceOf", raw)
}

// NativeBalance returns the wallet's native coin balance in wei.
func (g *Gateway) NativeBalance(ctx context.Context, wallet common.Address) (*big.Int, error) {
	var bal *big.Int
	err := g.client.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		bal, callErr = eth.BalanceAt(ctx, wallet, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("chain: native balance: %w", err)
	}
	return bal, nil
}

// GasPrice returns the node's suggested gas price in wei.
func (g *Gateway) GasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := g.client.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		price, callErr = eth.SuggestGasPrice(ctx)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("chain: gas price: %w", err)
	}
	return price, nil
}

// Allowance returns the spender's remaining allowance over the wallet's tokens.
func (g *Gateway) Allowance(ctx context.Context, token, wallet, spender common.Address) (*big.Int, error) {
	data, err := allowanceCalldata(wallet, spender)
	if err != nil {
		return nil, fmt.Errorf("chain: encode allowance: %w", err)
	}
	raw, err := g.call(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("chain: allowance %s: %w", token.Hex(), err)
	}
	return unpackBig(erc20ABI, "allowance", raw)
}

// Simulate dry-runs the request via eth_call without broadcasting. A revert
// is reported as domain.ErrSimulationRevert so callers can abort before
// spending a nonce or gas.
func (g *Gateway) Simulate(ctx context.Context, from common.Address, req domain.TxRequest) error {
	msg := ethereum.CallMsg{
		From:     from,
		To:       &req.To,
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Value:    req.Value,
		Data:     req.Data,
	}
	if _, err := g.call(ctx, msg); err != nil {
		if isRevert(err) {
			return fmt.Errorf("chain: %w: %s", domain.ErrSimulationRevert, err.Error())
		}
		return fmt.Errorf("chain: simulate: %w", err)
	}
	return nil
}

// SignAndSubmit signs the request with the wallet key and broadcasts it.
func (g *Gateway) SignAndSubmit(ctx context.Context, req domain.TxRequest) (common.Hash, error) {
	if g.key == nil {
		return common.Hash{}, errors.New("chain: no signing key configured")
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTransaction(req.Nonce, req.To, value, req.GasLimit, req.GasPrice, req.Data)

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), g.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: sign tx: %w", err)
	}

	err = g.client.do(ctx, func(eth *ethclient.Client) error {
		return eth.SendTransaction(ctx, signed)
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: send tx: %w", err)
	}

	hash := signed.Hash()
	g.logger.Info("transaction submitted",
		slog.String("hash", hash.Hex()),
		slog.Uint64("nonce", req.Nonce),
		slog.String("to", req.To.Hex()))
	return hash, nil
}

// AwaitReceipt polls until the transaction is mined or the context expires.
// A context deadline is reported as domain.ErrReceiptTimeout; the tx may
// still land on chain afterwards.
func (g *Gateway) AwaitReceipt(ctx context.Context, txHash common.Hash) (domain.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		var rcpt *types.Receipt
		err := g.client.do(ctx, func(eth *ethclient.Client) error {
			var callErr error
			rcpt, callErr = eth.TransactionReceipt(ctx, txHash)
			return callErr
		})
		if err == nil && rcpt != nil {
			out := domain.Receipt{
				TxHash:            rcpt.TxHash,
				Status:            rcpt.Status,
				GasUsed:           rcpt.GasUsed,
				EffectiveGasPrice: rcpt.EffectiveGasPrice,
			}
			if out.EffectiveGasPrice == nil {
				out.EffectiveGasPrice = new(big.Int)
			}
			return out, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && !retryable(err) && !errors.Is(err, context.DeadlineExceeded) {
			return domain.Receipt{}, fmt.Errorf("chain: receipt %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.Receipt{}, fmt.Errorf("chain: %w: %s", domain.ErrReceiptTimeout, txHash.Hex())
			}
			return domain.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TransactionCount returns the wallet's pending nonce.
func (g *Gateway) TransactionCount(ctx context.Context, wallet common.Address) (uint64, error) {
	var n uint64
	err := g.client.do(ctx, func(eth *ethclient.Client) error {
		var callErr error
		n, callErr = eth.PendingNonceAt(ctx, wallet)
		return callErr
	})
	if err != nil {
		return 0, fmt.Errorf("chain: pending nonce: %w", err)
	}
	return n, nil
}
