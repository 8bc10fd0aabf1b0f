package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Minimal ABI fragments for UniswapV2-style routers and ERC-20 tokens. The
// fee-on-transfer swap variant is used because several BSC tokens take a
// transfer tax, and the plain variant reverts on them.
const routerABIJSON = `[
	{"name":"getAmountsOut","type":"function","stateMutability":"view",
	 "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
	 "outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"name":"swapExactTokensForTokensSupportingFeeOnTransferTokens","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
	           {"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
	 "outputs":[]}
]`

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

var (
	routerABI abi.ABI
	erc20ABI  abi.ABI
)

func init() {
	var err error
	routerABI, err = abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic(fmt.Sprintf("chain: parse router abi: %v", err))
	}
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("chain: parse erc20 abi: %v", err))
	}
}

// QuoteCalldata encodes a getAmountsOut call.
func QuoteCalldata(amountIn *big.Int, path []common.Address) ([]byte, error) {
	return routerABI.Pack("getAmountsOut", amountIn, path)
}

// UnpackQuote decodes the output of a getAmountsOut call.
func UnpackQuote(data []byte) ([]*big.Int, error) {
	out, err := routerABI.Unpack("getAmountsOut", data)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack getAmountsOut: %w", err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: unexpected getAmountsOut output type %T", out[0])
	}
	return amounts, nil
}

// SwapCalldata encodes the fee-on-transfer-tolerant swap call.
func SwapCalldata(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return routerABI.Pack("swapExactTokensForTokensSupportingFeeOnTransferTokens",
		amountIn, minOut, path, to, deadline)
}

// ApproveCalldata encodes an ERC-20 approve call.
func ApproveCalldata(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

// balanceOfCalldata encodes an ERC-20 balanceOf call.
func balanceOfCalldata(owner common.Address) ([]byte, error) {
	return erc20ABI.Pack("balanceOf", owner)
}

// allowanceCalldata encodes an ERC-20 allowance call.
func allowanceCalldata(owner, spender common.Address) ([]byte, error) {
	return erc20ABI.Pack("allowance", owner, spender)
}

// unpackBig decodes a single uint256 return value.
func unpackBig(a abi.ABI, method string, data []byte) (*big.Int, error) {
	out, err := a.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: unexpected %s output type %T", method, out[0])
	}
	return v, nil
}
