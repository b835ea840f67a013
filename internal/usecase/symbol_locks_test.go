package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SentiTrade/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolLocksExclusive(t *testing.T) {
	locks := NewSymbolLocks()
	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(context.Background(), "AAPL", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestSymbolLocksTimeout(t *testing.T) {
	locks := NewSymbolLocks()
	release, err := locks.Acquire(context.Background(), "AAPL", time.Second)
	require.NoError(t, err)

	_, err = locks.Acquire(context.Background(), "AAPL", 10*time.Millisecond)
	assert.ErrorIs(t, err, models.ErrLockTimeout)

	// other symbols are independent
	r2, err := locks.Acquire(context.Background(), "TSLA", 10*time.Millisecond)
	require.NoError(t, err)
	r2()

	release()
	release()
	r3, err := locks.Acquire(context.Background(), "AAPL", 10*time.Millisecond)
	require.NoError(t, err)
	r3()
}
