package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool(t *testing.T) {
	t.Run("NeverExceedsCapacity", func(t *testing.T) {
		const capacity = 5
		const workers = 40

		p := New(capacity)
		var maxObserved atomic.Int64
		var holders atomic.Int64

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(t, p.Acquire(context.Background()))
				n := holders.Add(1)
				for {
					prev := maxObserved.Load()
					if n <= prev || maxObserved.CompareAndSwap(prev, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				holders.Add(-1)
				p.Release()
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, maxObserved.Load(), int64(capacity))
		assert.Equal(t, 0, p.InUse())
	})

	t.Run("AcquireRespectsContext", func(t *testing.T) {
		p := New(1)
		require.NoError(t, p.Acquire(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := p.Acquire(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		p.Release()
	})

	t.Run("DoneContextNeverYieldsPermit", func(t *testing.T) {
		p := New(1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.Acquire(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, p.InUse())
	})

	t.Run("ReleaseWithoutAcquirePanics", func(t *testing.T) {
		p := New(1)
		assert.Panics(t, func() { p.Release() })
	})

	t.Run("InvalidCapacityDefaultsToOne", func(t *testing.T) {
		p := New(0)
		assert.Equal(t, 1, p.Cap())
	})
}
