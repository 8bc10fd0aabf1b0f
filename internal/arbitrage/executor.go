package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/chain"
	"github.com/alanyoungcy/dexarb/internal/domain"
)

// SnapshotProvider delivers a fresh-enough price snapshot.
type SnapshotProvider interface {
	Refresh(ctx context.Context) (domain.PriceSnapshot, error)
}

// NonceSource hands out transaction nonces for the wallet.
type NonceSource interface {
	Next() uint64
	Resync(ctx context.Context) error
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// maxCycleTxs is the most transactions one cycle can broadcast: two
// approvals and two swaps.
const maxCycleTxs = 4

// ExecConfig holds the executor's trading parameters.
type ExecConfig struct {
	Base  domain.Token
	Quote domain.Token
	// Venues maps venue name to router address.
	Venues map[string]common.Address

	// TradeAmount is the quote-token amount committed to the buy leg.
	TradeAmount decimal.Decimal
	// BalanceReserve is the quote-token amount that must remain in the
	// wallet after committing TradeAmount.
	BalanceReserve decimal.Decimal

	MaxGasPrice         *big.Int // wei
	GasBufferMultiplier float64
	GasLimit            uint64
	TxDeadlineWindow    time.Duration
	ReceiptTimeout      time.Duration

	// BaseIsWrappedNative enables converting the native gas fee into quote
	// units via the cycle's sell price. Leave false when the base token does
	// not track the chain's native coin.
	BaseIsWrappedNative bool
}

// Executor runs one full arbitrage cycle per call: detect, buy base on the
// cheaper venue, sell it on the dearer one, settle. A wallet runs at most one
// cycle at a time.
type Executor struct {
	logger   *slog.Logger
	gw       domain.Gateway
	wallet   common.Address
	prices   SnapshotProvider
	detector *Detector
	routes   *RouteOptimizer
	nonces   NonceSource
	notifier Notifier          // optional
	store    domain.CycleStore // optional
	cfg      ExecConfig

	mu sync.Mutex
}

// NewExecutor wires an Executor. notifier and store may be nil.
func NewExecutor(gw domain.Gateway, wallet common.Address, prices SnapshotProvider, detector *Detector, routes *RouteOptimizer, nonces NonceSource, notifier Notifier, store domain.CycleStore, cfg ExecConfig, logger *slog.Logger) *Executor {
	return &Executor{
		logger:   logger.With(slog.String("component", "executor")),
		gw:       gw,
		wallet:   wallet,
		prices:   prices,
		detector: detector,
		routes:   routes,
		nonces:   nonces,
		notifier: notifier,
		store:    store,
		cfg:      cfg,
	}
}

// Execute runs one cycle. It returns domain.ErrNoOpportunity when the market
// offers nothing actionable; that outcome is quiet and is not recorded or
// alerted. Every other abort is recorded with the state it happened in, and
// the buy leg is never unwound: a cycle that bought but could not sell ends
// holding base tokens.
func (e *Executor) Execute(ctx context.Context) (domain.CycleResult, error) {
	if !e.mu.TryLock() {
		return domain.CycleResult{}, domain.ErrCycleInProgress
	}
	defer e.mu.Unlock()

	res := domain.CycleResult{
		ID:        uuid.NewString(),
		State:     domain.CycleIdle,
		StartedAt: time.Now(),
	}
	var receipts []domain.Receipt

	// 1. Balances and gas budget.
	res.State = domain.CycleCheckingBalances
	gasPrice, err := e.gasPrice(ctx)
	if err != nil {
		return e.abort(ctx, res, err)
	}
	quoteBal, err := e.gw.BalanceOf(ctx, e.cfg.Quote.Address, e.wallet)
	if err != nil {
		return e.abort(ctx, res, err)
	}
	res.InitialQuoteBalance = quoteBal

	tradeRaw := e.cfg.Quote.ToRaw(e.cfg.TradeAmount)
	needed := new(big.Int).Add(tradeRaw, e.cfg.Quote.ToRaw(e.cfg.BalanceReserve))
	if quoteBal.Cmp(needed) < 0 {
		err := fmt.Errorf("arbitrage: quote balance %s < required %s: %w",
			e.cfg.Quote.FromRaw(quoteBal), e.cfg.Quote.FromRaw(needed), domain.ErrInsufficientBalance)
		return e.abort(ctx, res, err)
	}

	nativeBal, err := e.gw.NativeBalance(ctx, e.wallet)
	if err != nil {
		return e.abort(ctx, res, err)
	}
	gasBudget := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(e.cfg.GasLimit*maxCycleTxs))
	if nativeBal.Cmp(gasBudget) < 0 {
		err := fmt.Errorf("arbitrage: native balance %s wei < gas budget %s wei: %w",
			nativeBal, gasBudget, domain.ErrInsufficientBalance)
		return e.abort(ctx, res, err)
	}

	// 2. Detection on a fresh snapshot.
	res.State = domain.CycleDetectingOpportunity
	snap, err := e.prices.Refresh(ctx)
	if err != nil {
		return e.abort(ctx, res, err)
	}
	opp, err := e.detector.FindBest(snap)
	if err != nil {
		if errors.Is(err, domain.ErrNoOpportunity) {
			res.State = domain.CycleIdle
			return res, err
		}
		return e.abort(ctx, res, err)
	}
	res.BuyVenue = opp.BuyVenue
	res.SellVenue = opp.SellVenue
	res.BuyPrice = opp.BuyPrice
	res.SellPrice = opp.SellPrice
	res.Spread = opp.Spread

	e.logger.Info("cycle started",
		slog.String("cycle_id", res.ID),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
		slog.String("spread", opp.Spread.String()))
	e.notify(ctx, "opportunity", "Opportunity detected",
		fmt.Sprintf("buy %s @ %s, sell %s @ %s, spread %s",
			opp.BuyVenue, opp.BuyPrice, opp.SellVenue, opp.SellPrice, opp.Spread))

	buyRouter, ok := e.cfg.Venues[opp.BuyVenue]
	if !ok {
		return e.abort(ctx, res, fmt.Errorf("arbitrage: unknown buy venue %q", opp.BuyVenue))
	}
	sellRouter, ok := e.cfg.Venues[opp.SellVenue]
	if !ok {
		return e.abort(ctx, res, fmt.Errorf("arbitrage: unknown sell venue %q", opp.SellVenue))
	}

	// 3. Buy leg: quote tokens in, base tokens out.
	res.State = domain.CycleApprovingBuy
	if err := e.ensureAllowance(ctx, e.cfg.Quote, buyRouter, tradeRaw, gasPrice, &receipts); err != nil {
		return e.abort(ctx, res, err)
	}

	buyRoute, err := e.routes.Best(ctx, opp.BuyVenue, buyRouter, e.cfg.Quote, e.cfg.Base, tradeRaw)
	if err != nil {
		return e.abort(ctx, res, err)
	}

	res.State = domain.CycleSubmittingBuy
	buyHash, buyRcpt, err := e.swap(ctx, buyRouter, buyRoute, gasPrice, &res, domain.CycleAwaitingBuyReceipt)
	res.BuyTxHash = buyHash
	if err != nil {
		return e.abort(ctx, res, err)
	}
	receipts = append(receipts, buyRcpt)

	baseBal, err := e.gw.BalanceOf(ctx, e.cfg.Base.Address, e.wallet)
	if err != nil {
		return e.abort(ctx, res, err)
	}
	if baseBal.Sign() <= 0 {
		return e.abort(ctx, res, fmt.Errorf("arbitrage: buy leg yielded no %s: %w", e.cfg.Base.Symbol, domain.ErrSwapFailed))
	}

	// 4. Sell leg: the entire base position goes back into quote tokens.
	res.State = domain.CycleApprovingSell
	if err := e.ensureAllowance(ctx, e.cfg.Base, sellRouter, baseBal, gasPrice, &receipts); err != nil {
		return e.abort(ctx, res, err)
	}

	sellRoute, err := e.routes.Best(ctx, opp.SellVenue, sellRouter, e.cfg.Base, e.cfg.Quote, baseBal)
	if err != nil {
		return e.abort(ctx, res, err)
	}

	res.State = domain.CycleSubmittingSell
	sellHash, sellRcpt, err := e.swap(ctx, sellRouter, sellRoute, gasPrice, &res, domain.CycleAwaitingSellReceipt)
	res.SellTxHash = sellHash
	if err != nil {
		return e.abort(ctx, res, err)
	}
	receipts = append(receipts, sellRcpt)

	// 5. Settlement.
	finalBal, err := e.gw.BalanceOf(ctx, e.cfg.Quote.Address, e.wallet)
	if err != nil {
		return e.abort(ctx, res, err)
	}
	res.FinalQuoteBalance = finalBal
	res.Profit = e.cfg.Quote.FromRaw(new(big.Int).Sub(finalBal, res.InitialQuoteBalance))
	res.GasFeeWei, res.GasFeeQuote = e.gasSpent(receipts, opp.SellPrice)
	res.State = domain.CycleSettled
	res.CompletedAt = time.Now()

	e.logger.Info("cycle settled",
		slog.String("cycle_id", res.ID),
		slog.String("profit", res.Profit.String()),
		slog.String("gas_fee_wei", res.GasFeeWei.String()),
		slog.Bool("profitable", res.Profitable()))
	e.notify(ctx, "settled", "Cycle settled",
		fmt.Sprintf("profit %s %s, gas %s %s", res.Profit, e.cfg.Quote.Symbol, res.GasFeeQuote, e.cfg.Quote.Symbol))
	e.persist(ctx, res)
	return res, nil
}

// swap broadcasts one leg: dry-run, take a nonce, sign, submit, wait. The
// dry-run happens before the nonce is taken, so a revert leaves the
// sequencer untouched.
func (e *Executor) swap(ctx context.Context, router common.Address, route domain.Route, gasPrice *big.Int, res *domain.CycleResult, awaitState domain.CycleState) (common.Hash, domain.Receipt, error) {
	deadline := big.NewInt(time.Now().Add(e.cfg.TxDeadlineWindow).Unix())
	data, err := chain.SwapCalldata(route.AmountIn, route.MinOut, route.Path, e.wallet, deadline)
	if err != nil {
		return common.Hash{}, domain.Receipt{}, fmt.Errorf("arbitrage: encode swap: %w", err)
	}
	req := domain.TxRequest{
		To:       router,
		Data:     data,
		GasLimit: e.cfg.GasLimit,
		GasPrice: gasPrice,
	}

	hash, rcpt, err := e.broadcast(ctx, req, func(common.Hash) { res.State = awaitState })
	if err != nil {
		return hash, domain.Receipt{}, err
	}
	if !rcpt.Succeeded() {
		return hash, rcpt, fmt.Errorf("arbitrage: swap tx %s reverted: %w", hash.Hex(), domain.ErrSwapFailed)
	}
	return hash, rcpt, nil
}

// broadcast simulates the request, then assigns a nonce and submits it. A
// failed submission resyncs the sequencer so the local counter does not run
// ahead of the chain. submitted, when non-nil, fires once the transaction is
// on the wire.
func (e *Executor) broadcast(ctx context.Context, req domain.TxRequest, submitted func(common.Hash)) (common.Hash, domain.Receipt, error) {
	if err := e.gw.Simulate(ctx, e.wallet, req); err != nil {
		return common.Hash{}, domain.Receipt{}, err
	}

	req.Nonce = e.nonces.Next()
	hash, err := e.gw.SignAndSubmit(ctx, req)
	if err != nil {
		if rerr := e.nonces.Resync(ctx); rerr != nil {
			e.logger.Warn("nonce resync failed", slog.String("error", rerr.Error()))
		}
		return common.Hash{}, domain.Receipt{}, err
	}

	if submitted != nil {
		submitted(hash)
	}
	rctx, cancel := context.WithTimeout(ctx, e.cfg.ReceiptTimeout)
	defer cancel()
	rcpt, err := e.gw.AwaitReceipt(rctx, hash)
	if err != nil {
		return hash, domain.Receipt{}, err
	}
	return hash, rcpt, nil
}

// ensureAllowance approves spender for amount unless the current allowance
// already covers it. Approvals are idempotent; re-running a cycle never
// re-approves.
func (e *Executor) ensureAllowance(ctx context.Context, token domain.Token, spender common.Address, amount, gasPrice *big.Int, receipts *[]domain.Receipt) error {
	allowance, err := e.gw.Allowance(ctx, token.Address, e.wallet, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	data, err := chain.ApproveCalldata(spender, amount)
	if err != nil {
		return fmt.Errorf("arbitrage: encode approve: %w", err)
	}
	req := domain.TxRequest{
		To:       token.Address,
		Data:     data,
		GasLimit: e.cfg.GasLimit,
		GasPrice: gasPrice,
	}

	hash, rcpt, err := e.broadcast(ctx, req, nil)
	if err != nil {
		if errors.Is(err, domain.ErrSimulationRevert) || errors.Is(err, domain.ErrReceiptTimeout) {
			return fmt.Errorf("%w: %s", domain.ErrApprovalFailed, err.Error())
		}
		return err
	}
	if !rcpt.Succeeded() {
		return fmt.Errorf("arbitrage: approve tx %s reverted: %w", hash.Hex(), domain.ErrApprovalFailed)
	}
	*receipts = append(*receipts, rcpt)
	e.logger.Info("allowance granted",
		slog.String("token", token.Symbol),
		slog.String("spender", spender.Hex()),
		slog.String("tx", hash.Hex()))
	return nil
}

// gasPrice returns the network gas price with the buffer multiplier applied,
// capped at the configured maximum.
func (e *Executor) gasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := e.gw.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	// Round: 1.15 is not exactly representable and would truncate to 114.
	mult := int64(math.Round(e.cfg.GasBufferMultiplier * 100))
	if mult < 100 {
		mult = 100
	}
	buffered := new(big.Int).Mul(suggested, big.NewInt(mult))
	buffered.Div(buffered, big.NewInt(100))
	if e.cfg.MaxGasPrice != nil && buffered.Cmp(e.cfg.MaxGasPrice) > 0 {
		return new(big.Int).Set(e.cfg.MaxGasPrice), nil
	}
	return buffered, nil
}

// gasSpent sums the gas fees over all cycle receipts and, when the base
// token tracks the native coin, converts the total into quote units at the
// cycle's sell price.
func (e *Executor) gasSpent(receipts []domain.Receipt, sellPrice decimal.Decimal) (*big.Int, decimal.Decimal) {
	total := new(big.Int)
	for _, rcpt := range receipts {
		total.Add(total, rcpt.Fee())
	}
	var inQuote decimal.Decimal
	if e.cfg.BaseIsWrappedNative && !sellPrice.IsZero() {
		inQuote = decimal.NewFromBigInt(total, -18).Mul(sellPrice)
	}
	return total, inQuote
}

// abort finalizes a failed cycle: it freezes the state the failure happened
// in, records the reason, alerts, and persists.
func (e *Executor) abort(ctx context.Context, res domain.CycleResult, cause error) (domain.CycleResult, error) {
	res.AbortReason = fmt.Sprintf("%s: %v", res.State, cause)
	res.State = domain.CycleAborted
	res.CompletedAt = time.Now()

	e.logger.Error("cycle aborted",
		slog.String("cycle_id", res.ID),
		slog.String("reason", res.AbortReason))
	e.notify(ctx, "aborted", "Cycle aborted", res.AbortReason)
	e.persist(ctx, res)
	return res, cause
}

// notify sends an operator alert when a notifier is wired. Delivery
// failures never fail the cycle.
func (e *Executor) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

// persist records the cycle when a store is wired. Storage failures are
// logged, never fatal: the cycle outcome stands regardless.
func (e *Executor) persist(ctx context.Context, res domain.CycleResult) {
	if e.store == nil {
		return
	}
	if err := e.store.Create(ctx, res); err != nil {
		e.logger.Warn("cycle store write failed",
			slog.String("cycle_id", res.ID),
			slog.String("error", err.Error()))
	}
}
