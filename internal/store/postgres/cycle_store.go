package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// CycleStore implements domain.CycleStore using PostgreSQL. Numeric columns
// travel as strings to keep big.Int and decimal values exact.
type CycleStore struct {
	pool *pgxpool.Pool
}

var _ domain.CycleStore = (*CycleStore)(nil)

// NewCycleStore creates a CycleStore backed by the given Client.
func NewCycleStore(c *Client) *CycleStore {
	return &CycleStore{pool: c.Pool()}
}

// Create inserts one cycle result.
func (s *CycleStore) Create(ctx context.Context, res domain.CycleResult) error {
	var completedAt *time.Time
	if !res.CompletedAt.IsZero() {
		completedAt = &res.CompletedAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO cycles (id, buy_venue, sell_venue, buy_price, sell_price, spread,
			buy_tx_hash, sell_tx_hash, initial_balance, final_balance, profit,
			gas_fee_wei, gas_fee_quote, state, abort_reason, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		res.ID, res.BuyVenue, res.SellVenue,
		res.BuyPrice.String(), res.SellPrice.String(), res.Spread.String(),
		hashStr(res.BuyTxHash), hashStr(res.SellTxHash),
		bigStr(res.InitialQuoteBalance), bigStr(res.FinalQuoteBalance),
		res.Profit.String(), bigStr(res.GasFeeWei), res.GasFeeQuote.String(),
		string(res.State), res.AbortReason, res.StartedAt, completedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert cycle %s: %w", res.ID, err)
	}
	return nil
}

// ListRecent returns the most recent cycles, newest first.
func (s *CycleStore) ListRecent(ctx context.Context, limit int) ([]domain.CycleResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, buy_venue, sell_venue, buy_price::text, sell_price::text, spread::text,
			buy_tx_hash, sell_tx_hash, initial_balance::text, final_balance::text, profit::text,
			gas_fee_wei::text, gas_fee_quote::text, state, abort_reason, started_at, completed_at
		FROM cycles ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles: %w", err)
	}
	defer rows.Close()

	var list []domain.CycleResult
	for rows.Next() {
		var (
			res                          domain.CycleResult
			buyPrice, sellPrice, spread  string
			profit, gasFeeQuote          string
			buyHash, sellHash, state     string
			initialBal, finalBal, gasWei *string
			completedAt                  *time.Time
		)
		if err := rows.Scan(&res.ID, &res.BuyVenue, &res.SellVenue,
			&buyPrice, &sellPrice, &spread,
			&buyHash, &sellHash, &initialBal, &finalBal, &profit,
			&gasWei, &gasFeeQuote, &state, &res.AbortReason,
			&res.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan cycle: %w", err)
		}

		res.BuyPrice = parseDec(buyPrice)
		res.SellPrice = parseDec(sellPrice)
		res.Spread = parseDec(spread)
		res.Profit = parseDec(profit)
		res.GasFeeQuote = parseDec(gasFeeQuote)
		res.BuyTxHash = common.HexToHash(buyHash)
		res.SellTxHash = common.HexToHash(sellHash)
		res.InitialQuoteBalance = parseBig(initialBal)
		res.FinalQuoteBalance = parseBig(finalBal)
		res.GasFeeWei = parseBig(gasWei)
		res.State = domain.CycleState(state)
		if completedAt != nil {
			res.CompletedAt = *completedAt
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

func hashStr(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}

func bigStr(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func parseBig(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
