// Package pool provides a counting permit pool that bounds concurrent access
// to a scarce external resource. Pools are plain values passed to the
// components that need them, so tests can instantiate independent pools.
package pool

import (
	"context"
	"sync/atomic"
)

// Pool is a counting concurrency limiter. The zero value is not usable;
// construct with New.
type Pool struct {
	permits chan struct{}
	inUse   atomic.Int64
}

// New creates a pool with the given capacity. Capacity must be positive.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool{permits: make(chan struct{}, capacity)}
}

// Acquire blocks until a permit is available or the context is done. A
// context that is already done never yields a permit.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.permits <- struct{}{}:
		p.inUse.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool. Calling Release without a matching
// Acquire panics.
func (p *Pool) Release() {
	select {
	case <-p.permits:
		p.inUse.Add(-1)
	default:
		panic("pool: release without acquire")
	}
}

// InUse reports the number of permits currently held.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Cap reports the pool capacity.
func (p *Pool) Cap() int {
	return cap(p.permits)
}
