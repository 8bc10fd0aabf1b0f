package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

var exp18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// raw converts a whole-token amount to 18-decimal raw units.
func raw(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), exp18)
}

// fakeGateway scripts the chain for one executor run. Balance reads pop from
// per-token slices in call order; receipts pop per awaited transaction.
type fakeGateway struct {
	quoteBals []*big.Int
	baseBals  []*big.Int
	native    *big.Int
	gas       *big.Int
	allowance *big.Int

	simErr error

	quoteCalls int
	submitted  []domain.TxRequest
	receipts   []domain.Receipt
	awaitErrs  []error
	awaited    int
}

func (f *fakeGateway) Quote(_ context.Context, _ common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	f.quoteCalls++
	out := new(big.Int)
	if path[0] == tokQuote.Address {
		out.Div(amountIn, big.NewInt(300))
	} else {
		out.Mul(amountIn, big.NewInt(301))
	}
	return []*big.Int{amountIn, out}, nil
}

func (f *fakeGateway) BalanceOf(_ context.Context, token, _ common.Address) (*big.Int, error) {
	var q *[]*big.Int
	switch token {
	case tokQuote.Address:
		q = &f.quoteBals
	case tokBase.Address:
		q = &f.baseBals
	default:
		return nil, fmt.Errorf("unexpected token %s", token.Hex())
	}
	if len(*q) == 0 {
		return nil, errors.New("no scripted balance left")
	}
	bal := (*q)[0]
	*q = (*q)[1:]
	return bal, nil
}

func (f *fakeGateway) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return f.native, nil
}

func (f *fakeGateway) GasPrice(context.Context) (*big.Int, error) {
	return f.gas, nil
}

func (f *fakeGateway) Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return f.allowance, nil
}

func (f *fakeGateway) Simulate(context.Context, common.Address, domain.TxRequest) error {
	return f.simErr
}

func (f *fakeGateway) SignAndSubmit(_ context.Context, req domain.TxRequest) (common.Hash, error) {
	f.submitted = append(f.submitted, req)
	return common.BigToHash(big.NewInt(int64(len(f.submitted)))), nil
}

func (f *fakeGateway) AwaitReceipt(_ context.Context, txHash common.Hash) (domain.Receipt, error) {
	i := f.awaited
	f.awaited++
	if i < len(f.awaitErrs) && f.awaitErrs[i] != nil {
		return domain.Receipt{}, f.awaitErrs[i]
	}
	if i >= len(f.receipts) {
		return domain.Receipt{}, errors.New("no scripted receipt left")
	}
	rcpt := f.receipts[i]
	rcpt.TxHash = txHash
	return rcpt, nil
}

func (f *fakeGateway) TransactionCount(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

type fakeNonces struct {
	next    uint64
	handed  int
	resyncs int
}

func (n *fakeNonces) Next() uint64 {
	n.handed++
	v := n.next
	n.next++
	return v
}

func (n *fakeNonces) Resync(context.Context) error {
	n.resyncs++
	return nil
}

type fakeSnapshots struct {
	snap  domain.PriceSnapshot
	err   error
	calls int
}

func (f *fakeSnapshots) Refresh(context.Context) (domain.PriceSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

func spreadSnapshot() domain.PriceSnapshot {
	return snapshot(map[string]domain.VenuePrice{
		"venue_x": {Buy: dec("300"), Sell: dec("301")},
		"venue_y": {Buy: dec("298"), Sell: dec("299.5")},
	})
}

// maxAllowance makes both approvals no-ops.
var maxAllowance = new(big.Int).Lsh(big.NewInt(1), 255)

func newTestExecutor(gw *fakeGateway, snaps *fakeSnapshots, nonces *fakeNonces) *Executor {
	wallet := common.HexToAddress("0xfe")
	routers := map[string]common.Address{
		"venue_x": common.HexToAddress("0xaa"),
		"venue_y": common.HexToAddress("0xbb"),
	}
	detector := NewDetector(dec("0.5"), testLogger())
	routes := NewRouteOptimizer(gw, nil, 1.0, testLogger())
	return NewExecutor(gw, wallet, snaps, detector, routes, nonces, nil, nil,
		ExecConfig{
			Base:                tokBase,
			Quote:               tokQuote,
			Venues:              routers,
			TradeAmount:         dec("50"),
			BalanceReserve:      dec("1"),
			MaxGasPrice:         big.NewInt(50_000_000_000),
			GasBufferMultiplier: 1.15,
			GasLimit:            400_000,
			TxDeadlineWindow:    5 * time.Minute,
			ReceiptTimeout:      time.Second,
			BaseIsWrappedNative: true,
		}, testLogger())
}

func okReceipt() domain.Receipt {
	return domain.Receipt{Status: 1, GasUsed: 100_000, EffectiveGasPrice: big.NewInt(5_000_000_000)}
}

func TestExecuteSettlesProfitableCycle(t *testing.T) {
	gw := &fakeGateway{
		quoteBals: []*big.Int{raw(1000), raw(1004)},
		baseBals:  []*big.Int{raw(1)},
		native:    raw(1),
		gas:       big.NewInt(5_000_000_000),
		allowance: maxAllowance,
		receipts:  []domain.Receipt{okReceipt(), okReceipt()},
	}
	snaps := &fakeSnapshots{snap: spreadSnapshot()}
	nonces := &fakeNonces{next: 7}

	res, err := newTestExecutor(gw, snaps, nonces).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.State != domain.CycleSettled {
		t.Fatalf("state = %s, want settled", res.State)
	}
	if !res.Profit.Equal(dec("4")) {
		t.Fatalf("profit = %s, want 4", res.Profit)
	}
	if !res.Profitable() {
		t.Fatalf("cycle not marked profitable")
	}
	if res.BuyVenue != "venue_y" || res.SellVenue != "venue_x" {
		t.Fatalf("venues = %s -> %s, want venue_y -> venue_x", res.BuyVenue, res.SellVenue)
	}
	if len(gw.submitted) != 2 {
		t.Fatalf("submitted %d txs, want 2 (allowances were pre-granted)", len(gw.submitted))
	}
	if gw.submitted[0].Nonce != 7 || gw.submitted[1].Nonce != 8 {
		t.Fatalf("nonces = %d, %d, want 7, 8", gw.submitted[0].Nonce, gw.submitted[1].Nonce)
	}
	// 5 gwei buffered by 1.15 and under the cap.
	wantGas := big.NewInt(5_750_000_000)
	if gw.submitted[0].GasPrice.Cmp(wantGas) != 0 {
		t.Fatalf("gas price = %s, want %s", gw.submitted[0].GasPrice, wantGas)
	}
	// Two receipts at 100k gas x 5 gwei each.
	wantFee := big.NewInt(1_000_000_000_000_000)
	if res.GasFeeWei.Cmp(wantFee) != 0 {
		t.Fatalf("gas fee = %s wei, want %s", res.GasFeeWei, wantFee)
	}
	// 0.001 native at the 301 sell price.
	if !res.GasFeeQuote.Equal(dec("0.301")) {
		t.Fatalf("gas fee in quote = %s, want 0.301", res.GasFeeQuote)
	}
	if res.BuyTxHash == (common.Hash{}) || res.SellTxHash == (common.Hash{}) {
		t.Fatalf("tx hashes not recorded: buy %s sell %s", res.BuyTxHash.Hex(), res.SellTxHash.Hex())
	}
}

func TestExecuteInsufficientQuoteBalance(t *testing.T) {
	gw := &fakeGateway{
		quoteBals: []*big.Int{raw(10)}, // trade needs 50 + 1 reserve
		native:    raw(1),
		gas:       big.NewInt(5_000_000_000),
		allowance: maxAllowance,
	}
	snaps := &fakeSnapshots{snap: spreadSnapshot()}
	nonces := &fakeNonces{next: 7}

	res, err := newTestExecutor(gw, snaps, nonces).Execute(context.Background())
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if res.State != domain.CycleAborted {
		t.Fatalf("state = %s, want aborted", res.State)
	}
	if snaps.calls != 0 {
		t.Fatalf("refreshed prices %d times before balances cleared, want 0", snaps.calls)
	}
	if gw.quoteCalls != 0 || len(gw.submitted) != 0 {
		t.Fatalf("touched the network beyond balances: %d quotes, %d txs", gw.quoteCalls, len(gw.submitted))
	}
}

func TestExecuteSimulationRevertLeavesNonceUntouched(t *testing.T) {
	gw := &fakeGateway{
		quoteBals: []*big.Int{raw(1000)},
		native:    raw(1),
		gas:       big.NewInt(5_000_000_000),
		allowance: maxAllowance,
		simErr:    fmt.Errorf("chain: %w: execution reverted", domain.ErrSimulationRevert),
	}
	snaps := &fakeSnapshots{snap: spreadSnapshot()}
	nonces := &fakeNonces{next: 7}

	res, err := newTestExecutor(gw, snaps, nonces).Execute(context.Background())
	if !errors.Is(err, domain.ErrSimulationRevert) {
		t.Fatalf("err = %v, want ErrSimulationRevert", err)
	}
	if res.State != domain.CycleAborted {
		t.Fatalf("state = %s, want aborted", res.State)
	}
	if len(gw.submitted) != 0 {
		t.Fatalf("submitted %d txs after a failed dry-run, want 0", len(gw.submitted))
	}
	if nonces.handed != 0 {
		t.Fatalf("consumed %d nonce(s) on a reverted simulation, want 0", nonces.handed)
	}
	if nonces.next != 7 {
		t.Fatalf("next nonce = %d, want 7 unchanged", nonces.next)
	}
}

func TestExecuteSellReceiptTimeoutAbortsWithoutUnwind(t *testing.T) {
	gw := &fakeGateway{
		quoteBals: []*big.Int{raw(1000)},
		baseBals:  []*big.Int{raw(1)},
		native:    raw(1),
		gas:       big.NewInt(5_000_000_000),
		allowance: maxAllowance,
		receipts:  []domain.Receipt{okReceipt()},
		awaitErrs: []error{nil, fmt.Errorf("chain: %w: 0xdead", domain.ErrReceiptTimeout)},
	}
	snaps := &fakeSnapshots{snap: spreadSnapshot()}
	nonces := &fakeNonces{next: 7}

	res, err := newTestExecutor(gw, snaps, nonces).Execute(context.Background())
	if !errors.Is(err, domain.ErrReceiptTimeout) {
		t.Fatalf("err = %v, want ErrReceiptTimeout", err)
	}
	if res.State != domain.CycleAborted {
		t.Fatalf("state = %s, want aborted", res.State)
	}
	if res.BuyTxHash == (common.Hash{}) {
		t.Fatalf("buy tx hash missing from the record")
	}
	// Both legs were broadcast; no compensating third transaction exists.
	if len(gw.submitted) != 2 {
		t.Fatalf("submitted %d txs, want exactly 2", len(gw.submitted))
	}
	// The sell nonce stays consumed: the tx may still land later.
	if nonces.handed != 2 || nonces.resyncs != 0 {
		t.Fatalf("nonces handed = %d resyncs = %d, want 2 and 0", nonces.handed, nonces.resyncs)
	}
}

func TestExecuteNoOpportunityIsQuiet(t *testing.T) {
	gw := &fakeGateway{
		quoteBals: []*big.Int{raw(1000)},
		native:    raw(1),
		gas:       big.NewInt(5_000_000_000),
		allowance: maxAllowance,
	}
	// Flat prices on both venues: no spread anywhere.
	snaps := &fakeSnapshots{snap: snapshot(map[string]domain.VenuePrice{
		"venue_x": {Buy: dec("300"), Sell: dec("300")},
		"venue_y": {Buy: dec("300"), Sell: dec("300")},
	})}
	nonces := &fakeNonces{next: 7}

	res, err := newTestExecutor(gw, snaps, nonces).Execute(context.Background())
	if !errors.Is(err, domain.ErrNoOpportunity) {
		t.Fatalf("err = %v, want ErrNoOpportunity", err)
	}
	if res.State != domain.CycleIdle {
		t.Fatalf("state = %s, want idle (quiet outcome, not an abort)", res.State)
	}
	if len(gw.submitted) != 0 || nonces.handed != 0 {
		t.Fatalf("no-opportunity round still traded: %d txs, %d nonces", len(gw.submitted), nonces.handed)
	}
}

func TestExecuteGasPriceCappedAtMax(t *testing.T) {
	gw := &fakeGateway{
		quoteBals: []*big.Int{raw(1000), raw(1004)},
		baseBals:  []*big.Int{raw(1)},
		native:    raw(10),
		gas:       big.NewInt(100_000_000_000), // 100 gwei suggested
		allowance: maxAllowance,
		receipts:  []domain.Receipt{okReceipt(), okReceipt()},
	}
	snaps := &fakeSnapshots{snap: spreadSnapshot()}
	nonces := &fakeNonces{next: 7}

	_, err := newTestExecutor(gw, snaps, nonces).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := big.NewInt(50_000_000_000)
	for i, req := range gw.submitted {
		if req.GasPrice.Cmp(want) != 0 {
			t.Fatalf("tx %d gas price = %s, want capped %s", i, req.GasPrice, want)
		}
	}
}
