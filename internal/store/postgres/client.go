// Package postgres persists executed cycles using PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientConfig holds connection parameters for the PostgreSQL client.
type ClientConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN builds a PostgreSQL connection string from the given config. An
// explicit DSN wins over the individual fields.
func DSN(cfg ClientConfig) string {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database, sslMode,
	)
}

// Client wraps a pgxpool.Pool.
type Client struct {
	pool *pgxpool.Pool
}

// New creates a new Client with a connection pool configured from cfg.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Client{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close shuts down the connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// EnsureSchema creates the cycles table when it does not exist yet. The
// engine owns its schema; there is no separate migration step.
func (c *Client) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS cycles (
			id              TEXT PRIMARY KEY,
			buy_venue       TEXT NOT NULL DEFAULT '',
			sell_venue      TEXT NOT NULL DEFAULT '',
			buy_price       NUMERIC NOT NULL DEFAULT 0,
			sell_price      NUMERIC NOT NULL DEFAULT 0,
			spread          NUMERIC NOT NULL DEFAULT 0,
			buy_tx_hash     TEXT NOT NULL DEFAULT '',
			sell_tx_hash    TEXT NOT NULL DEFAULT '',
			initial_balance NUMERIC,
			final_balance   NUMERIC,
			profit          NUMERIC NOT NULL DEFAULT 0,
			gas_fee_wei     NUMERIC,
			gas_fee_quote   NUMERIC NOT NULL DEFAULT 0,
			state           TEXT NOT NULL,
			abort_reason    TEXT NOT NULL DEFAULT '',
			started_at      TIMESTAMPTZ NOT NULL,
			completed_at    TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS cycles_started_at_idx ON cycles (started_at DESC);`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}
