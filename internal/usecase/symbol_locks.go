package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
)

// SymbolLocks gives at most one holder per symbol. Acquisition is bounded by
// a timeout so a stuck pipeline cannot wedge the next cycle forever.
type SymbolLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewSymbolLocks() *SymbolLocks {
	return &SymbolLocks{slots: make(map[string]chan struct{})}
}

func (l *SymbolLocks) slot(symbol string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[symbol]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[symbol] = ch
	}
	return ch
}

// Acquire blocks until the symbol is free, timeout elapses or ctx ends.
// The returned release func must be called exactly once.
func (l *SymbolLocks) Acquire(ctx context.Context, symbol string, timeout time.Duration) (func(), error) {
	ch := l.slot(symbol)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s after %s: %w", symbol, timeout, models.ErrLockTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", symbol, ctx.Err())
	}
}
