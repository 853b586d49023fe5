// Package memledger is an in-process, append-only ledger. It backs the
// development ledger-service and the marketplace tests.
package memledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jcmexdev/shoe-market/internal/ledger"
	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
)

var ErrInvalidAmount = errors.New("memledger: amount must be positive")

type Ledger struct {
	mu     sync.RWMutex
	blocks []ledger.Block
	now    func() time.Time
}

func New() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// Transfer appends a transfer between the default accounts of from and to and
// returns its block index.
func (l *Ledger) Transfer(_ context.Context, from, to domain.Principal, amount, memo uint64) (uint64, error) {
	return l.TransferAddress(ledger.DefaultAddress(from), ledger.DefaultAddress(to), amount, memo)
}

func (l *Ledger) TransferAddress(from, to ledger.Address, amount, memo uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := uint64(len(l.blocks))
	l.blocks = append(l.blocks, ledger.Block{
		Index:     idx,
		Memo:      memo,
		Transfer:  &ledger.Transfer{From: from, To: to, Amount: amount},
		Timestamp: l.now(),
	})
	return idx, nil
}

func (l *Ledger) QueryBlocks(_ context.Context, start, length uint64) ([]ledger.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := uint64(len(l.blocks))
	if start >= n || length == 0 {
		return nil, nil
	}
	end := start + length
	if end > n || end < start {
		end = n
	}
	out := make([]ledger.Block, end-start)
	copy(out, l.blocks[start:end])
	return out, nil
}

// Len is the number of blocks written so far.
func (l *Ledger) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.blocks))
}
