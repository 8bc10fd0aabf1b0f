package chain

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeCounter struct {
	mu      sync.Mutex
	pending uint64
	err     error
	calls   int
}

func (f *fakeCounter) TransactionCount(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.pending, nil
}

func TestSequencerSeedsFromPendingNonce(t *testing.T) {
	c := &fakeCounter{pending: 42}
	s, err := NewSequencer(context.Background(), c, common.HexToAddress("0xfe"))
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}
	if got := s.Current(); got != 42 {
		t.Fatalf("Current = %d, want 42", got)
	}
	if got := s.Next(); got != 42 {
		t.Fatalf("Next = %d, want 42", got)
	}
	if got := s.Next(); got != 43 {
		t.Fatalf("second Next = %d, want 43", got)
	}
}

func TestSequencerSeedFailure(t *testing.T) {
	c := &fakeCounter{err: errors.New("node down")}
	if _, err := NewSequencer(context.Background(), c, common.HexToAddress("0xfe")); err == nil {
		t.Fatalf("NewSequencer succeeded with an unreachable node")
	}
}

func TestSequencerConcurrentNextIsGapFree(t *testing.T) {
	c := &fakeCounter{pending: 100}
	s, err := NewSequencer(context.Background(), c, common.HexToAddress("0xfe"))
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}

	const n = 64
	nonces := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nonces[i] = s.Next()
		}(i)
	}
	wg.Wait()

	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	for i, nonce := range nonces {
		if want := uint64(100 + i); nonce != want {
			t.Fatalf("nonce[%d] = %d, want %d (duplicate or gap)", i, nonce, want)
		}
	}
	if got := s.Current(); got != 100+n {
		t.Fatalf("Current = %d, want %d", got, 100+n)
	}
}

func TestSequencerResync(t *testing.T) {
	c := &fakeCounter{pending: 5}
	s, err := NewSequencer(context.Background(), c, common.HexToAddress("0xfe"))
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}
	s.Next()
	s.Next()

	// The chain moved underneath us.
	c.mu.Lock()
	c.pending = 9
	c.mu.Unlock()

	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if got := s.Next(); got != 9 {
		t.Fatalf("Next after resync = %d, want 9", got)
	}
}
