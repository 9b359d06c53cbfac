// Package pool provides a bounded cache of reusable values.
//
// Capacity is soft: when the pool is drained Get allocates a fresh overflow
// value instead of blocking, and that value is simply dropped when released.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrCapacity is returned for a non-positive capacity.
var ErrCapacity = errors.New("pool: capacity must be greater than 0")

// Pool hands out values of type T. It is safe for concurrent use.
type Pool[T any] struct {
	newFn   func() T
	resetFn func(T)

	mu       sync.Mutex
	free     []T
	capacity int

	overflow atomic.Int64
}

// Handle is one lease on a value handed out by a Pool. Every Get returns a
// new Handle, so a released Handle stays released even after its value has
// been handed out again.
type Handle[T any] struct {
	value    T
	pool     *Pool[T]
	pooled   bool
	released atomic.Bool
}

// New builds a pool pre-filled with capacity values from newFn. resetFn, if
// non-nil, is applied to a value when it is released.
func New[T any](capacity int, newFn func() T, resetFn func(T)) (*Pool[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}
	if newFn == nil {
		return nil, errors.New("pool: nil constructor")
	}
	p := &Pool[T]{
		newFn:    newFn,
		resetFn:  resetFn,
		free:     make([]T, 0, capacity),
		capacity: capacity,
	}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, newFn())
	}
	return p, nil
}

// Get pops a free value, or allocates an overflow value when none is left.
func (p *Pool[T]) Get() *Handle[T] {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		var zero T
		p.free[n-1] = zero
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return &Handle[T]{value: v, pool: p, pooled: true}
	}
	p.mu.Unlock()

	p.overflow.Add(1)
	return &Handle[T]{value: p.newFn(), pool: p}
}

// Release resets h's value and, if it came from the pool, makes it available
// again. Only the first Release of a Handle has any effect.
func (p *Pool[T]) Release(h *Handle[T]) {
	if h == nil || h.pool != p {
		return
	}
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	if p.resetFn != nil {
		p.resetFn(h.value)
	}
	if !h.pooled {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, h.value)
	p.mu.Unlock()
}

// Available returns the number of idle pooled values.
func (p *Pool[T]) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Capacity returns the number of pooled values the pool was built with.
func (p *Pool[T]) Capacity() int { return p.capacity }

// Overflow returns how many overflow values have been allocated.
func (p *Pool[T]) Overflow() int64 { return p.overflow.Load() }

// Value returns the leased value. It must not be used after Release.
func (h *Handle[T]) Value() T { return h.value }

// Released reports whether the lease has been given back.
func (h *Handle[T]) Released() bool { return h.released.Load() }

// Pooled reports whether the value returns to the pool on release.
func (h *Handle[T]) Pooled() bool { return h.pooled }

// Release returns the handle to its pool.
func (h *Handle[T]) Release() {
	h.pool.Release(h)
}
