// Package chain implements the gateway to the remote blockchain node: RPC
// failover, ABI encoding, transaction signing, and nonce sequencing.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an ethclient connection over an ordered list of RPC endpoints.
// All calls go to the current endpoint; on a transport-level error the client
// rotates to the next endpoint and retries, wrapping around the list once.
// Reverts and context cancellation are never retried.
type Client struct {
	logger *slog.Logger
	urls   []string

	mu  sync.Mutex
	idx int
	eth *ethclient.Client
}

// NewClient dials the first reachable endpoint in urls.
func NewClient(ctx context.Context, urls []string, logger *slog.Logger) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("chain: no rpc urls configured")
	}

	c := &Client{
		logger: logger.With(slog.String("component", "chain_client")),
		urls:   urls,
	}

	var lastErr error
	for i, url := range urls {
		eth, err := ethclient.DialContext(ctx, url)
		if err != nil {
			lastErr = err
			c.logger.Warn("endpoint unreachable", slog.String("url", url), slog.String("error", err.Error()))
			continue
		}
		if _, err := eth.ChainID(ctx); err != nil {
			eth.Close()
			lastErr = err
			c.logger.Warn("endpoint not responding", slog.String("url", url), slog.String("error", err.Error()))
			continue
		}
		c.idx = i
		c.eth = eth
		c.logger.Info("connected", slog.String("url", url))
		return c, nil
	}
	return nil, fmt.Errorf("chain: no reachable rpc endpoint: %w", lastErr)
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}

// current returns the active ethclient and its position in the url list.
func (c *Client) current() (*ethclient.Client, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eth, c.idx
}

// rotate switches to the endpoint after from, if another goroutine has not
// already moved on.
func (c *Client) rotate(ctx context.Context, from int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx != from {
		return
	}
	next := (c.idx + 1) % len(c.urls)
	eth, err := ethclient.DialContext(ctx, c.urls[next])
	if err != nil {
		c.logger.Warn("failover dial failed", slog.String("url", c.urls[next]), slog.String("error", err.Error()))
		return
	}
	if c.eth != nil {
		c.eth.Close()
	}
	c.idx = next
	c.eth = eth
	c.logger.Info("switched endpoint", slog.String("url", c.urls[next]))
}

// do runs call against the current endpoint, rotating through the remaining
// endpoints on transport errors. Each endpoint is tried at most once per do.
func (c *Client) do(ctx context.Context, call func(*ethclient.Client) error) error {
	var lastErr error
	for attempt := 0; attempt < len(c.urls); attempt++ {
		eth, idx := c.current()
		if eth == nil {
			return errors.New("chain: client closed")
		}
		err := call(eth)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		c.rotate(ctx, idx)
	}
	return fmt.Errorf("chain: all endpoints failed: %w", lastErr)
}

// retryable reports whether the error is a transport fault worth a failover,
// as opposed to a revert or a cancelled context.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// A not-found is a definitive answer from a healthy node, not a fault.
	if errors.Is(err, ethereum.NotFound) {
		return false
	}
	if isRevert(err) {
		return false
	}
	return true
}

// isRevert reports whether the node rejected the call because the EVM
// execution reverted.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "always failing transaction") ||
		strings.Contains(msg, "transfer amount exceeds")
}
