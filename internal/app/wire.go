package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/arbitrage"
	"github.com/alanyoungcy/dexarb/internal/cache/redis"
	"github.com/alanyoungcy/dexarb/internal/chain"
	"github.com/alanyoungcy/dexarb/internal/config"
	"github.com/alanyoungcy/dexarb/internal/crypto"
	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/notify"
	"github.com/alanyoungcy/dexarb/internal/pricing"
	"github.com/alanyoungcy/dexarb/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Gateway    *chain.Gateway
	Aggregator *pricing.Aggregator
	Detector   *arbitrage.Detector
	Executor   *arbitrage.Executor // nil in monitor mode
	Notifier   *notify.Notifier
	CycleStore domain.CycleStore // nil unless postgres is enabled

	Base  domain.Token
	Quote domain.Token
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Token and venue registries ---
	tokens := make(map[string]domain.Token, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens[t.Symbol] = domain.Token{
			Symbol:   t.Symbol,
			Address:  common.HexToAddress(t.Address),
			Decimals: t.Decimals,
		}
	}
	deps.Base = tokens[cfg.Pair.Base]
	deps.Quote = tokens[cfg.Pair.Quote]

	var bridge *domain.Token
	if cfg.Pair.Bridge != "" {
		b := tokens[cfg.Pair.Bridge]
		bridge = &b
	}

	venues := make([]domain.Venue, 0, len(cfg.Venues))
	routers := make(map[string]common.Address, len(cfg.Venues))
	for _, v := range cfg.Venues {
		addr := common.HexToAddress(v.Router)
		venues = append(venues, domain.Venue{Name: v.Name, Router: addr})
		routers[v.Name] = addr
	}

	// --- Chain client and gateway ---
	client, err := chain.NewClient(ctx, cfg.Chain.RPCURLs, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, client.Close)

	arbitrageMode := strings.ToLower(cfg.Mode) == "arbitrage"

	key, err := loadKey(cfg, arbitrageMode)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
	}
	deps.Gateway = chain.NewGateway(client, cfg.Chain.ChainID, key, logger)

	// --- Snapshot cache ---
	var cache domain.SnapshotCache = pricing.NewMemCache()
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		cache = redis.NewSnapshotCache(redisClient)
	}

	// --- Pricing and detection ---
	deps.Aggregator = pricing.NewAggregator(deps.Gateway, cache, deps.Base, deps.Quote, bridge, venues,
		pricing.Config{
			FreshnessWindow: cfg.Pricing.FreshnessWindow.Duration,
			QuoteTimeout:    cfg.Pricing.QuoteTimeout.Duration,
			Workers:         cfg.Pricing.Workers,
		}, logger)
	deps.Detector = arbitrage.NewDetector(decimal.NewFromFloat(cfg.Arbitrage.MinProfitThreshold), logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	if !arbitrageMode {
		return deps, cleanup, nil
	}

	// --- Execution wiring (arbitrage mode only) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.EnsureSchema {
			if err := pgClient.EnsureSchema(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres schema: %w", err)
			}
		}
		deps.CycleStore = postgres.NewCycleStore(pgClient)
	}

	sequencer, err := chain.NewSequencer(ctx, deps.Gateway, deps.Gateway.Wallet())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: nonce sequencer: %w", err)
	}

	routes := arbitrage.NewRouteOptimizer(deps.Gateway, bridge, cfg.Arbitrage.SlippageTolerancePct, logger)

	deps.Executor = arbitrage.NewExecutor(
		deps.Gateway, deps.Gateway.Wallet(), deps.Aggregator, deps.Detector, routes,
		sequencer, deps.Notifier, deps.CycleStore,
		arbitrage.ExecConfig{
			Base:                deps.Base,
			Quote:               deps.Quote,
			Venues:              routers,
			TradeAmount:         decimal.NewFromFloat(cfg.Arbitrage.TradeAmount),
			BalanceReserve:      decimal.NewFromFloat(cfg.Arbitrage.BalanceReserve),
			MaxGasPrice:         gweiToWei(cfg.Arbitrage.MaxGasPriceGwei),
			GasBufferMultiplier: cfg.Arbitrage.GasBufferMultiplier,
			GasLimit:            cfg.Arbitrage.GasLimit,
			TxDeadlineWindow:    cfg.Arbitrage.TxDeadlineWindow.Duration,
			ReceiptTimeout:      cfg.Arbitrage.ReceiptTimeout.Duration,
			BaseIsWrappedNative: cfg.Pair.Base == cfg.Chain.WrappedNative,
		}, logger)

	return deps, cleanup, nil
}

// loadKey resolves the signing key for modes that broadcast transactions.
// Monitor mode runs read-only and never touches key material.
func loadKey(cfg *config.Config, required bool) (*ecdsa.PrivateKey, error) {
	if !required {
		return nil, nil
	}
	return crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
}

// gweiToWei converts a gwei figure to wei, truncating sub-wei fractions.
func gweiToWei(gwei float64) *big.Int {
	return big.NewInt(int64(gwei * 1e9))
}
