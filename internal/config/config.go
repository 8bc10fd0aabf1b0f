// Package config defines the top-level configuration for the dexarb engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DEXARB_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Chain     ChainConfig     `toml:"chain"`
	Pair      PairConfig      `toml:"pair"`
	Tokens    []TokenConfig   `toml:"tokens"`
	Venues    []VenueConfig   `toml:"venues"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Pricing   PricingConfig   `toml:"pricing"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds the trading wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds remote node endpoints and chain parameters. RPCURLs is an
// ordered list; the gateway fails over down the list when a provider errors.
type ChainConfig struct {
	RPCURLs []string `toml:"rpc_urls"`
	ChainID int64    `toml:"chain_id"`
	// WrappedNative is the registry symbol of the wrapped native coin. When
	// the base token matches it, gas fees can be restated in quote units.
	WrappedNative string `toml:"wrapped_native"`
}

// PairConfig names the traded pair and the optional intermediate hop token,
// by symbol. Each symbol must appear in the token registry.
type PairConfig struct {
	Base   string `toml:"base"`
	Quote  string `toml:"quote"`
	Bridge string `toml:"bridge"`
}

// TokenConfig is one entry of the token registry.
type TokenConfig struct {
	Symbol   string `toml:"symbol"`
	Address  string `toml:"address"`
	Decimals uint8  `toml:"decimals"`
}

// VenueConfig is one swap venue (router contract) to quote and trade against.
type VenueConfig struct {
	Name   string `toml:"name"`
	Router string `toml:"router"`
}

// ArbitrageConfig holds detection and execution parameters.
type ArbitrageConfig struct {
	// MinProfitThreshold is the minimum spread, in quote-token units per base
	// token, for an opportunity to be actionable.
	MinProfitThreshold   float64 `toml:"min_profit_threshold"`
	SlippageTolerancePct float64 `toml:"slippage_tolerance_pct"`
	// TradeAmount is the quote-token amount committed to the buy leg.
	TradeAmount         float64 `toml:"trade_amount"`
	MaxGasPriceGwei     float64 `toml:"max_gas_price_gwei"`
	GasBufferMultiplier float64 `toml:"gas_buffer_multiplier"`
	// BalanceReserve is the quote-token amount that must remain untouched in
	// the wallet after committing TradeAmount.
	BalanceReserve   float64  `toml:"balance_reserve"`
	GasLimit         uint64   `toml:"gas_limit"`
	TxDeadlineWindow duration `toml:"tx_deadline_window"`
	ReceiptTimeout   duration `toml:"receipt_timeout"`
	// MaxRounds bounds the arbitrage loop; 0 means run until cancelled.
	MaxRounds int `toml:"max_rounds"`
}

// PricingConfig holds price aggregation parameters.
type PricingConfig struct {
	FreshnessWindow duration `toml:"freshness_window"`
	RefreshInterval duration `toml:"refresh_interval"`
	QuoteTimeout    duration `toml:"quote_timeout"`
	// Workers bounds the number of concurrent quote requests.
	Workers int `toml:"workers"`
}

// RedisConfig holds the optional shared snapshot cache parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// PostgresConfig holds the optional cycle store connection parameters.
type PostgresConfig struct {
	Enabled      bool   `toml:"enabled"`
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
	EnsureSchema bool   `toml:"ensure_schema"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values for
// BNB Smart Chain mainnet. These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURLs: []string{
				"https://bsc-dataseed.binance.org",
				"https://bsc-dataseed1.defibit.io",
				"https://bsc-dataseed1.ninicoin.io",
			},
			ChainID:       56,
			WrappedNative: "WBNB",
		},
		Pair: PairConfig{
			Base:   "WBNB",
			Quote:  "USDT",
			Bridge: "BUSD",
		},
		Tokens: []TokenConfig{
			{Symbol: "USDT", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
			{Symbol: "WBNB", Address: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Decimals: 18},
			{Symbol: "BUSD", Address: "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56", Decimals: 18},
		},
		Venues: []VenueConfig{
			{Name: "pancakeswap", Router: "0x10ED43C718714eb63d5aA57B78B54704E256024E"},
			{Name: "biswap", Router: "0x3a6d8cA21D1CF76F653A67577FA0D27453350dD8"},
			{Name: "mdex", Router: "0x7DAe51BD3E3376B8c7c4900E9107f12Be3AF1bA8"},
		},
		Arbitrage: ArbitrageConfig{
			MinProfitThreshold:   0.5,
			SlippageTolerancePct: 1.0,
			TradeAmount:          50.0,
			MaxGasPriceGwei:      50.0,
			GasBufferMultiplier:  1.15,
			BalanceReserve:       1.0,
			GasLimit:             400_000,
			TxDeadlineWindow:     duration{5 * time.Minute},
			ReceiptTimeout:       duration{3 * time.Minute},
			MaxRounds:            0,
		},
		Pricing: PricingConfig{
			FreshnessWindow: duration{3 * time.Second},
			RefreshInterval: duration{10 * time.Second},
			QuoteTimeout:    duration{5 * time.Second},
			Workers:         6,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "dexarb",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 5,
			PoolMinConns: 1,
			EnsureSchema: true,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "settled", "aborted", "error"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor":   true,
	"arbitrage": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, arbitrage)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet: only the arbitrage mode signs transactions.
	if strings.ToLower(c.Mode) == "arbitrage" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode arbitrage")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Chain
	if len(c.Chain.RPCURLs) == 0 {
		errs = append(errs, "chain: at least one rpc_urls entry is required")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}

	// Tokens: the registry must cover every symbol the pair references.
	seen := map[string]bool{}
	for i, t := range c.Tokens {
		if t.Symbol == "" {
			errs = append(errs, fmt.Sprintf("tokens[%d]: symbol must not be empty", i))
			continue
		}
		if seen[t.Symbol] {
			errs = append(errs, fmt.Sprintf("tokens: duplicate symbol %q", t.Symbol))
		}
		seen[t.Symbol] = true
		if !common.IsHexAddress(t.Address) {
			errs = append(errs, fmt.Sprintf("tokens[%s]: invalid address %q", t.Symbol, t.Address))
		}
	}
	if c.Pair.Base == "" || c.Pair.Quote == "" {
		errs = append(errs, "pair: base and quote symbols must be set")
	}
	if c.Pair.Base == c.Pair.Quote {
		errs = append(errs, "pair: base and quote must differ")
	}
	for _, sym := range []string{c.Pair.Base, c.Pair.Quote} {
		if sym != "" && !seen[sym] {
			errs = append(errs, fmt.Sprintf("pair: symbol %q is not in the token registry", sym))
		}
	}
	if c.Pair.Bridge != "" && !seen[c.Pair.Bridge] {
		errs = append(errs, fmt.Sprintf("pair: bridge symbol %q is not in the token registry", c.Pair.Bridge))
	}

	// Venues
	if len(c.Venues) < 2 {
		errs = append(errs, fmt.Sprintf("venues: at least 2 venues are required, got %d", len(c.Venues)))
	}
	venueSeen := map[string]bool{}
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
			continue
		}
		if venueSeen[v.Name] {
			errs = append(errs, fmt.Sprintf("venues: duplicate name %q", v.Name))
		}
		venueSeen[v.Name] = true
		if !common.IsHexAddress(v.Router) {
			errs = append(errs, fmt.Sprintf("venues[%s]: invalid router address %q", v.Name, v.Router))
		}
	}

	// Arbitrage
	if c.Arbitrage.MinProfitThreshold <= 0 {
		errs = append(errs, "arbitrage: min_profit_threshold must be > 0")
	}
	if c.Arbitrage.SlippageTolerancePct < 0 || c.Arbitrage.SlippageTolerancePct >= 100 {
		errs = append(errs, fmt.Sprintf("arbitrage: slippage_tolerance_pct must be in [0, 100), got %g", c.Arbitrage.SlippageTolerancePct))
	}
	if c.Arbitrage.TradeAmount <= 0 {
		errs = append(errs, "arbitrage: trade_amount must be > 0")
	}
	if c.Arbitrage.MaxGasPriceGwei <= 0 {
		errs = append(errs, "arbitrage: max_gas_price_gwei must be > 0")
	}
	if c.Arbitrage.GasBufferMultiplier < 1.0 {
		errs = append(errs, "arbitrage: gas_buffer_multiplier must be >= 1.0")
	}
	if c.Arbitrage.BalanceReserve < 0 {
		errs = append(errs, "arbitrage: balance_reserve must be >= 0")
	}
	if c.Arbitrage.GasLimit == 0 {
		errs = append(errs, "arbitrage: gas_limit must be > 0")
	}
	if c.Arbitrage.TxDeadlineWindow.Duration <= 0 {
		errs = append(errs, "arbitrage: tx_deadline_window must be > 0")
	}
	if c.Arbitrage.ReceiptTimeout.Duration <= 0 {
		errs = append(errs, "arbitrage: receipt_timeout must be > 0")
	}
	if c.Arbitrage.MaxRounds < 0 {
		errs = append(errs, "arbitrage: max_rounds must be >= 0")
	}

	// Pricing
	if c.Pricing.FreshnessWindow.Duration <= 0 {
		errs = append(errs, "pricing: freshness_window must be > 0")
	}
	if c.Pricing.RefreshInterval.Duration <= 0 {
		errs = append(errs, "pricing: refresh_interval must be > 0")
	}
	if c.Pricing.QuoteTimeout.Duration <= 0 {
		errs = append(errs, "pricing: quote_timeout must be > 0")
	}
	if c.Pricing.Workers < 1 {
		errs = append(errs, "pricing: workers must be >= 1")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
