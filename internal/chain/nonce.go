package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionCounter is the slice of the gateway the sequencer needs to seed
// and resync itself.
type TransactionCounter interface {
	TransactionCount(ctx context.Context, wallet common.Address) (uint64, error)
}

// Sequencer hands out strictly increasing nonces for one wallet. It is seeded
// from the node's pending nonce and advances locally so that consecutive
// submissions in one cycle never collide, even when the node has not yet seen
// the previous transaction.
type Sequencer struct {
	counter TransactionCounter
	wallet  common.Address

	mu   sync.Mutex
	next uint64
}

// NewSequencer seeds a Sequencer from the wallet's current pending nonce.
func NewSequencer(ctx context.Context, counter TransactionCounter, wallet common.Address) (*Sequencer, error) {
	s := &Sequencer{counter: counter, wallet: wallet}
	if err := s.Resync(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Next returns the nonce to use for the next transaction and advances the
// counter. Call it only once the transaction is certain to be broadcast.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	return n
}

// Current returns the nonce the next call to Next would hand out.
func (s *Sequencer) Current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Resync re-reads the pending nonce from the node. Use it after a failed
// broadcast left the local counter ahead of the chain.
func (s *Sequencer) Resync(ctx context.Context) error {
	n, err := s.counter.TransactionCount(ctx, s.wallet)
	if err != nil {
		return fmt.Errorf("chain: seed nonce: %w", err)
	}
	s.mu.Lock()
	s.next = n
	s.mu.Unlock()
	return nil
}
