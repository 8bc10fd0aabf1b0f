package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEXARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEXARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "DEXARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "DEXARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "DEXARB_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStringSlice(&cfg.Chain.RPCURLs, "DEXARB_CHAIN_RPC_URLS")
	setInt64(&cfg.Chain.ChainID, "DEXARB_CHAIN_ID")
	setStr(&cfg.Chain.WrappedNative, "DEXARB_CHAIN_WRAPPED_NATIVE")

	// ── Pair ──
	setStr(&cfg.Pair.Base, "DEXARB_PAIR_BASE")
	setStr(&cfg.Pair.Quote, "DEXARB_PAIR_QUOTE")
	setStr(&cfg.Pair.Bridge, "DEXARB_PAIR_BRIDGE")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.MinProfitThreshold, "DEXARB_ARBITRAGE_MIN_PROFIT_THRESHOLD")
	setFloat64(&cfg.Arbitrage.SlippageTolerancePct, "DEXARB_ARBITRAGE_SLIPPAGE_TOLERANCE_PCT")
	setFloat64(&cfg.Arbitrage.TradeAmount, "DEXARB_ARBITRAGE_TRADE_AMOUNT")
	setFloat64(&cfg.Arbitrage.MaxGasPriceGwei, "DEXARB_ARBITRAGE_MAX_GAS_PRICE_GWEI")
	setFloat64(&cfg.Arbitrage.GasBufferMultiplier, "DEXARB_ARBITRAGE_GAS_BUFFER_MULTIPLIER")
	setFloat64(&cfg.Arbitrage.BalanceReserve, "DEXARB_ARBITRAGE_BALANCE_RESERVE")
	setUint64(&cfg.Arbitrage.GasLimit, "DEXARB_ARBITRAGE_GAS_LIMIT")
	setDuration(&cfg.Arbitrage.TxDeadlineWindow, "DEXARB_ARBITRAGE_TX_DEADLINE_WINDOW")
	setDuration(&cfg.Arbitrage.ReceiptTimeout, "DEXARB_ARBITRAGE_RECEIPT_TIMEOUT")
	setInt(&cfg.Arbitrage.MaxRounds, "DEXARB_ARBITRAGE_MAX_ROUNDS")

	// ── Pricing ──
	setDuration(&cfg.Pricing.FreshnessWindow, "DEXARB_PRICING_FRESHNESS_WINDOW")
	setDuration(&cfg.Pricing.RefreshInterval, "DEXARB_PRICING_REFRESH_INTERVAL")
	setDuration(&cfg.Pricing.QuoteTimeout, "DEXARB_PRICING_QUOTE_TIMEOUT")
	setInt(&cfg.Pricing.Workers, "DEXARB_PRICING_WORKERS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DEXARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DEXARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEXARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEXARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEXARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEXARB_REDIS_MAX_RETRIES")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DEXARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DEXARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DEXARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEXARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEXARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEXARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEXARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEXARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEXARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEXARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.EnsureSchema, "DEXARB_POSTGRES_ENSURE_SCHEMA")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DEXARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DEXARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DEXARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DEXARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DEXARB_MODE")
	setStr(&cfg.LogLevel, "DEXARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
